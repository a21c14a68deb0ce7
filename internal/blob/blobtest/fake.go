// Package blobtest provides an in-memory blob.Uploader for tests.
package blobtest

import (
	"context"
	"io"
	"sync"
)

type Uploader struct {
	BaseURL string
	PutErr  error
	DelErr  error

	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	puts    int
	deletes []string
}

func New() *Uploader {
	return &Uploader{
		BaseURL: "https://cdn.test",
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (u *Uploader) Put(ctx context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	u.mu.Lock()
	u.puts++
	u.mu.Unlock()

	if u.PutErr != nil {
		return "", u.PutErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = data
	u.types[key] = contentType
	return u.BaseURL + "/" + key, nil
}

func (u *Uploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.deletes = append(u.deletes, key)
	if u.DelErr != nil {
		return u.DelErr
	}
	delete(u.objects, key)
	delete(u.types, key)
	return nil
}

// Puts counts Put calls, including failed ones.
func (u *Uploader) Puts() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.puts
}

func (u *Uploader) Deletes() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.deletes...)
}

func (u *Uploader) Object(key string) ([]byte, string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.objects[key]
	return data, u.types[key], ok
}

func (u *Uploader) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}
