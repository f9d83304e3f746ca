package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// AudioInput is mixed under the video for the whole export.
type AudioInput struct {
	Path   string
	Volume float64
}

type Options struct {
	Width     int
	Height    int
	FPS       int
	Codec     string
	Bitrate   string
	Container string
	Audio     *AudioInput
}

// EncoderError carries the ffmpeg command line and the tail of its stderr.
type EncoderError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *EncoderError) Error() string {
	msg := fmt.Sprintf("ffmpeg %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *EncoderError) Unwrap() error {
	return e.Err
}

// Stream is a running ffmpeg process that takes raw RGBA frames on stdin
// and writes the encoded container to Output.
type Stream struct {
	cmd    *exec.Cmd
	args   []string
	stdin  io.WriteCloser
	stdout *drainReader
	stderr *tailBuffer
	frame  image.Rectangle

	outputTaken atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

func Start(ctx context.Context, opts Options) (*Stream, error) {
	return start(ctx, "ffmpeg", buildArgs(opts), image.Rect(0, 0, opts.Width, opts.Height))
}

func start(ctx context.Context, name string, args []string, frame image.Rectangle) (*Stream, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, &EncoderError{Args: args, Err: err}
	}

	return &Stream{
		cmd:    cmd,
		args:   args,
		stdin:  stdin,
		stdout: &drainReader{r: stdout, done: make(chan struct{})},
		stderr: stderr,
		frame:  frame,
	}, nil
}

// WriteFrame sends one frame. Frames of a different size are rejected.
func (s *Stream) WriteFrame(img image.Image) error {
	if img.Bounds().Size() != s.frame.Size() {
		return fmt.Errorf("frame size %v, encoder expects %v", img.Bounds().Size(), s.frame.Size())
	}
	if err := writeRawRGBA(s.stdin, img); err != nil {
		return &EncoderError{Args: s.args, Stderr: s.stderr.String(), Err: err}
	}
	return nil
}

// Output is the encoded byte stream. It reaches EOF once Close has flushed
// the encoder.
func (s *Stream) Output() io.Reader {
	s.outputTaken.Store(true)
	return s.stdout
}

// Close ends the input, waits until Output has been read to EOF and then
// reaps ffmpeg. A caller of Output must keep reading it concurrently or
// Close blocks. Without a reader the output is discarded.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.stdin.Close()
		if !s.outputTaken.Load() {
			io.Copy(io.Discard, s.stdout)
		}
		<-s.stdout.done
		if err := s.cmd.Wait(); err != nil {
			s.closeErr = &EncoderError{Args: s.args, Stderr: s.stderr.String(), Err: err}
		}
	})
	return s.closeErr
}

func buildArgs(opts Options) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", strconv.Itoa(opts.FPS),
		"-i", "-",
	}

	if opts.Audio != nil {
		args = append(args, "-i", opts.Audio.Path)
		args = append(args,
			"-map", "0:v",
			"-map", "1:a",
			// apad keeps a short bed from ending the export early.
			"-filter:a", fmt.Sprintf("volume=%.2f,apad", opts.Audio.Volume),
			"-c:a", audioCodec(opts.Container),
			"-b:a", "128k",
			"-shortest",
		)
	}

	args = append(args,
		"-c:v", opts.Codec,
		"-b:v", opts.Bitrate,
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(opts.FPS),
	)

	// Realtime settings per encoder
	switch opts.Codec {
	case "libvpx-vp9":
		args = append(args, "-deadline", "realtime", "-cpu-used", "8", "-row-mt", "1")
	case "libvpx":
		args = append(args, "-deadline", "realtime", "-cpu-used", "8")
	case "libx264":
		args = append(args, "-preset", "veryfast")
	}

	args = append(args, "-f", opts.Container, "-")
	return args
}

func audioCodec(container string) string {
	if container == "webm" {
		return "libopus"
	}
	return "aac"
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}

// drainReader closes done once the pipe reports EOF or an error. Wait
// closes the pipe, so it may only run after that.
type drainReader struct {
	r    io.Reader
	done chan struct{}
	once sync.Once
}

func (d *drainReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err != nil {
		d.once.Do(func() { close(d.done) })
	}
	return n, err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}
