package service

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func encodeTestImage(t *testing.T, width, height int, encode func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestImageProcess(t *testing.T) {
	dir := t.TempDir()
	svc := NewImageService(dir, "/static/uploads")

	data := encodeTestImage(t, 3200, 1800, func(buf *bytes.Buffer, img image.Image) error {
		return jpeg.Encode(buf, img, nil)
	})

	processed, err := svc.Process(data)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if !strings.HasPrefix(processed.PhotoPath, "/static/uploads/") {
		t.Fatalf("unexpected photo path: %s", processed.PhotoPath)
	}
	if !strings.HasPrefix(processed.ThumbPath, "/static/uploads/thumbs/") {
		t.Fatalf("unexpected thumb path: %s", processed.ThumbPath)
	}

	photoFile := filepath.Join(dir, filepath.Base(processed.PhotoPath))
	thumbFile := filepath.Join(dir, "thumbs", filepath.Base(processed.ThumbPath))

	photo := decodeStoredJPEG(t, photoFile)
	if photo.Bounds().Dx() != 1600 || photo.Bounds().Dy() != 900 {
		t.Fatalf("photo should scale to 1600x900, got %v", photo.Bounds())
	}

	thumb := decodeStoredJPEG(t, thumbFile)
	if thumb.Bounds().Dx() != 400 || thumb.Bounds().Dy() != 225 {
		t.Fatalf("thumb should scale to 400x225, got %v", thumb.Bounds())
	}
}

func TestImageProcessKeepsSmallImages(t *testing.T) {
	dir := t.TempDir()
	svc := NewImageService(dir, "/static/uploads")

	// PNG 也接受，存储时统一转 JPEG
	data := encodeTestImage(t, 640, 480, func(buf *bytes.Buffer, img image.Image) error {
		return png.Encode(buf, img)
	})

	processed, err := svc.Process(data)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	photo := decodeStoredJPEG(t, filepath.Join(dir, filepath.Base(processed.PhotoPath)))
	if photo.Bounds().Dx() != 640 || photo.Bounds().Dy() != 480 {
		t.Fatalf("small photo should keep its size, got %v", photo.Bounds())
	}
}

func TestImageProcessRejectsBadData(t *testing.T) {
	svc := NewImageService(t.TempDir(), "/static/uploads")

	var imageErr *ImageProcessingError
	if _, err := svc.Process(nil); !errors.As(err, &imageErr) {
		t.Fatalf("expected *ImageProcessingError for empty data, got %v", err)
	}
	if _, err := svc.Process([]byte("not an image")); !errors.As(err, &imageErr) {
		t.Fatalf("expected *ImageProcessingError for junk data, got %v", err)
	}
}

func decodeStoredJPEG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open stored image: %v", err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("failed to decode stored image: %v", err)
	}
	return img
}
