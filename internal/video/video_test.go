package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseOptions() Options {
	return Options{Width: 1920, Height: 1080, FPS: 30, Codec: "libvpx-vp9", Bitrate: "5M", Container: "webm"}
}

func indexOf(args []string, v string) int {
	for i, a := range args {
		if a == v {
			return i
		}
	}
	return -1
}

func TestBuildArgsVideoOnly(t *testing.T) {
	args := buildArgs(baseOptions())

	assert.Equal(t, "1920x1080", args[indexOf(args, "-video_size")+1])
	assert.Equal(t, "rgba", args[indexOf(args, "-pixel_format")+1])
	assert.Equal(t, "libvpx-vp9", args[indexOf(args, "-c:v")+1])
	assert.Equal(t, "5M", args[indexOf(args, "-b:v")+1])
	assert.Equal(t, "30", args[indexOf(args, "-r")+1])
	assert.Equal(t, "realtime", args[indexOf(args, "-deadline")+1])
	assert.Equal(t, []string{"-f", "webm", "-"}, args[len(args)-3:])
	assert.Equal(t, -1, indexOf(args, "-map"))
	assert.Equal(t, -1, indexOf(args, "-shortest"))
}

func TestBuildArgsWithAudio(t *testing.T) {
	opts := baseOptions()
	opts.Audio = &AudioInput{Path: "bed.mp3", Volume: 0.7}
	args := buildArgs(opts)

	assert.Equal(t, "bed.mp3", args[indexOf(args, "-i")+3])
	assert.Equal(t, "volume=0.70,apad", args[indexOf(args, "-filter:a")+1])
	assert.Equal(t, "libopus", args[indexOf(args, "-c:a")+1])
	assert.NotEqual(t, -1, indexOf(args, "-shortest"))
	assert.Equal(t, "0:v", args[indexOf(args, "-map")+1])
}

func TestBuildArgsOtherCodec(t *testing.T) {
	opts := baseOptions()
	opts.Codec = "libx264"
	opts.Container = "matroska"
	args := buildArgs(opts)

	assert.Equal(t, -1, indexOf(args, "-deadline"))
	assert.Equal(t, "veryfast", args[indexOf(args, "-preset")+1])
	assert.Equal(t, "aac", audioCodec(opts.Container))
}

func TestWriteRawRGBA(t *testing.T) {
	img := image.NewNRGBA(image.Rect(5, 5, 7, 6))
	img.Set(5, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	img.Set(6, 5, color.NRGBA{R: 4, G: 5, B: 6, A: 255})

	var buf bytes.Buffer
	require.NoError(t, writeRawRGBA(&buf, img))
	assert.Equal(t, []byte{1, 2, 3, 255, 4, 5, 6, 255}, buf.Bytes())
}

func TestEncoderErrorUnwrap(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &EncoderError{Args: []string{"-i", "-"}, Stderr: "Unknown encoder", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Unknown encoder")
	assert.Contains(t, err.Error(), "-i -")
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{limit: 4}
	tb.Write([]byte("abcdef"))
	tb.Write([]byte("gh"))
	assert.Equal(t, "efgh", tb.String())
}

// readLikeCollector drains r in a goroutine and reports the byte count.
func readLikeCollector(r io.Reader) <-chan int {
	out := make(chan int, 1)
	go func() {
		n := 0
		buf := make([]byte, 32*1024)
		for {
			m, err := r.Read(buf)
			n += m
			if err != nil {
				out <- n
				return
			}
		}
	}()
	return out
}

func TestCloseWaitsForFullOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	const size = 3000000
	script := "cat >/dev/null; head -c 3000000 /dev/zero"

	for i := 0; i < 10; i++ {
		s, err := start(context.Background(), "sh", []string{"-c", script}, image.Rect(0, 0, 2, 2))
		require.NoError(t, err)

		got := readLikeCollector(s.Output())
		require.NoError(t, s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 2, 2))))
		require.NoError(t, s.Close())
		assert.Equal(t, size, <-got, "run %d", i)
	}
}

func TestCloseWithoutReader(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	s, err := start(context.Background(), "sh", []string{"-c", "cat >/dev/null; head -c 200000 /dev/zero"}, image.Rect(0, 0, 2, 2))
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestCloseReportsExitError(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	s, err := start(context.Background(), "sh", []string{"-c", "cat >/dev/null; echo boom >&2; exit 3"}, image.Rect(0, 0, 2, 2))
	require.NoError(t, err)

	got := readLikeCollector(s.Output())
	err = s.Close()
	<-got

	var encErr *EncoderError
	require.ErrorAs(t, err, &encErr)
	assert.Contains(t, encErr.Stderr, "boom")
}

func TestShortAudioBedKeepsFullVideo(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	bed := filepath.Join(t.TempDir(), "bed.wav")
	gen := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=0.2", bed)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate audio bed: %v: %s", err, out)
	}

	opts := Options{Width: 64, Height: 48, FPS: 30, Codec: "mpeg4", Bitrate: "200k", Container: "matroska",
		Audio: &AudioInput{Path: bed, Volume: 0.7}}
	s, err := Start(context.Background(), opts)
	require.NoError(t, err)
	got := readLikeCollector(s.Output())

	// One second of video over a 0.2s bed.
	frame := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := 0; i < 30; i++ {
		require.NoError(t, s.WriteFrame(frame), "frame %d", i)
	}
	require.NoError(t, s.Close())
	assert.Greater(t, <-got, 0)
}
