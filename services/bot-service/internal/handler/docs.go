package handler

import (
	"embed"
	"io/fs"
)

//go:embed openapi/*.yaml
var openapiFiles embed.FS

// OpenAPI returns the admin API reference documents.
func OpenAPI() fs.FS {
	sub, err := fs.Sub(openapiFiles, "openapi")
	if err != nil {
		panic(err)
	}
	return sub
}
