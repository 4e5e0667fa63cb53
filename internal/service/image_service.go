package service

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

const (
	// 证据照片长边压到 1600，缩略图 400
	maxPhotoDimension   = 1600
	thumbPhotoDimension = 400
	photoJPEGQuality    = 85
)

// ImageProcessingError 表示上传的照片无法处理
type ImageProcessingError struct {
	msg string
}

func (e *ImageProcessingError) Error() string { return e.msg }

// ProcessedPhoto 描述一张处理完成的证据照片
type ProcessedPhoto struct {
	PhotoPath string
	ThumbPath string
}

// ImageService 负责证据照片的规范化存储：统一转成 JPEG，
// 压缩原图并生成缩略图，两者都以 UUID 命名
type ImageService struct {
	uploadDir string
	urlPath   string
}

// NewImageService 构造 ImageService
func NewImageService(uploadDir, urlPath string) *ImageService {
	return &ImageService{uploadDir: uploadDir, urlPath: urlPath}
}

// Process 处理一张上传的照片，返回原图与缩略图的访问路径。
// 解码失败返回 *ImageProcessingError；任一文件写入失败时清理已写入的文件。
func (s *ImageService) Process(data []byte) (*ProcessedPhoto, error) {
	if len(data) == 0 {
		return nil, &ImageProcessingError{msg: "uploaded file is empty"}
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ImageProcessingError{msg: "uploaded file is not a supported image"}
	}

	if err := os.MkdirAll(filepath.Join(s.uploadDir, "thumbs"), 0o755); err != nil {
		return nil, fmt.Errorf("prepare upload directories: %w", err)
	}

	fileID := uuid.New().String()
	photoName := fileID + ".jpg"
	photoFile := filepath.Join(s.uploadDir, photoName)
	thumbFile := filepath.Join(s.uploadDir, "thumbs", photoName)

	if err := writeScaledJPEG(photoFile, src, maxPhotoDimension); err != nil {
		return nil, err
	}
	if err := writeScaledJPEG(thumbFile, src, thumbPhotoDimension); err != nil {
		os.Remove(photoFile)
		return nil, err
	}

	return &ProcessedPhoto{
		PhotoPath: s.urlPath + "/" + photoName,
		ThumbPath: s.urlPath + "/thumbs/" + photoName,
	}, nil
}

// writeScaledJPEG 把图像长边缩到 maxDim 以内后编码为 JPEG 写盘
func writeScaledJPEG(path string, src image.Image, maxDim int) error {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxDim || height > maxDim {
		if width >= height {
			height = height * maxDim / width
			width = maxDim
		} else {
			width = width * maxDim / height
			height = maxDim
		}
		if width < 1 {
			width = 1
		}
		if height < 1 {
			height = 1
		}

		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)
		src = scaled
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, src, &jpeg.Options{Quality: photoJPEGQuality}); err != nil {
		os.Remove(path)
		return fmt.Errorf("encode image: %w", err)
	}
	return nil
}
