package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		json.NewEncoder(w).Encode(DetectResponse{
			FacesCount: 1,
			Faces: []Face{
				{FaceIndex: 0, Dim: 3, Embedding: []float32{0.1, 0.2, 0.3}, BBox: []float64{1, 2, 3, 4}, DetScore: 0.9},
			},
			Model: "test",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.DetectFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00})
	if err != nil {
		t.Fatalf("DetectFaces: %v", err)
	}
	if resp.FacesCount != 1 || len(resp.Faces) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Faces[0].Embedding[2] != 0.3 {
		t.Errorf("unexpected embedding: %v", resp.Faces[0].Embedding)
	}
}

func TestDetectFacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.DetectFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0, 0, 0, 0, 0}); err == nil {
		t.Error("expected error on 500 response")
	}
}
