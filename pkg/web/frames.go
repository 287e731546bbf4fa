package web

import (
	"bytes"
	"context"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// jpegQuality trades overlay detail for bandwidth.
const jpegQuality = 70

var boxColor = color.RGBA{0, 255, 0, 255}

type frameJob struct {
	img image.Image
	box image.Rectangle
}

// SendFrame queues img for encoding. Only the newest frame is kept; it
// never blocks the caller.
func (s *Server) SendFrame(img image.Image, box image.Rectangle) {
	job := frameJob{img: img, box: box}
	select {
	case s.frames <- job:
		return
	default:
	}
	// Replace the stale frame
	select {
	case <-s.frames:
	default:
	}
	select {
	case s.frames <- job:
	default:
	}
}

func (s *Server) encodeFrames(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.frames:
			data, err := encodeFrame(job.img, job.box)
			if err != nil {
				s.lg.Debug("frame not encoded", "error", err)
				continue
			}
			s.encoded.Add(1)
			s.frameHub.BroadcastBinary(data)
		}
	}
}

// encodeFrame draws box on img and returns it as JPEG.
func encodeFrame(img image.Image, box image.Rectangle) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if !box.Empty() {
		gocv.Rectangle(&mat, box, boxColor, 2)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), jpegQuality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}
