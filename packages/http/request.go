package http

import (
	"io"
)

// MultipartFieldType distinguishes file parts from plain form values
type MultipartFieldType int

const (
	MultipartFieldValue MultipartFieldType = iota
	MultipartFieldFile
)

// MultipartField is one part of a multipart/form-data body
type MultipartField struct {
	Type        MultipartFieldType
	Name        string
	Value       string
	Filename    string
	ContentType string
	Reader      io.Reader
}

// FileField builds a file part read from r
func FileField(name, filename, contentType string, r io.Reader) *MultipartField {
	return &MultipartField{
		Type:        MultipartFieldFile,
		Name:        name,
		Filename:    filename,
		ContentType: contentType,
		Reader:      r,
	}
}

// ValueField builds a plain form part
func ValueField(name, value string) *MultipartField {
	return &MultipartField{
		Type:  MultipartFieldValue,
		Name:  name,
		Value: value,
	}
}

type Request struct {
	Method    string
	URL       string
	Headers   map[string]string
	Body      []byte
	Multipart []*MultipartField
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}
