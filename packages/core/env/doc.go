// Package env loads .env files and expands variable references in
// configuration values.
//
// References use {{name}} for variables from a loaded .env file and
// {{$NAME}} for OS environment variables.
package env
