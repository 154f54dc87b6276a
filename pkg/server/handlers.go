package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/user/codecbridge/pkg/adapters/containerinfo"
	"github.com/user/codecbridge/pkg/codec"
	"github.com/user/codecbridge/pkg/codecs"
	"github.com/user/codecbridge/pkg/media"
	"github.com/user/codecbridge/pkg/transcode"
)

// multipartMemory is the part of a multipart body kept in memory.
const multipartMemory = 32 << 20

// errBadRequest marks errors that are the client's fault.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"webcodecs": "ready",
	})
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.fail(w, r, err)
		return
	}

	if data, ok, err := formFile(r, "frames"); err != nil {
		s.fail(w, r, err)
		return
	} else if ok {
		s.encodeFrames(w, r, data)
		return
	}

	if data, ok, err := formFile(r, "file"); err != nil {
		s.fail(w, r, err)
		return
	} else if ok {
		s.transcodeFile(w, r, data)
		return
	}

	s.fail(w, r, badRequest("multipart field frames or file is required"))
}

func (s *Server) encodeFrames(w http.ResponseWriter, r *http.Request, data []byte) {
	cfg, err := encoderConfigFromForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	frameSize := media.I420Size(cfg.Width, cfg.Height)
	if len(data) == 0 || len(data)%frameSize != 0 {
		s.fail(w, r, badRequest("frames size %d is not a multiple of %d (%dx%d I420)", len(data), frameSize, cfg.Width, cfg.Height))
		return
	}

	enc := codec.NewEncoder(s.opts.Launcher,
		codec.WithLogger(s.opts.Logger),
		codec.WithFlushTimeout(s.opts.FlushTimeout),
	)
	if err := enc.Configure(cfg); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	framerate := cfg.Framerate
	if framerate <= 0 {
		framerate = codec.DefaultFramerate
	}
	frameDur := int64(1_000_000 / framerate)

	count := len(data) / frameSize
	for i := 0; i < count; i++ {
		frame, err := media.NewRawFrame(data[i*frameSize:(i+1)*frameSize], media.RawFrameInit{
			Timestamp:   media.At(int64(i) * frameDur),
			Duration:    frameDur,
			CodedWidth:  cfg.Width,
			CodedHeight: cfg.Height,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := enc.Encode(frame, codec.EncodeOptions{KeyFrame: i == 0}); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	chunks, err := enc.Close()
	asyncErr := collect(enc.Errors())
	if err != nil {
		s.fail(w, r, errors.Join(err, asyncErr))
		return
	}
	if len(chunks) == 0 {
		s.fail(w, r, errors.Join(errors.New("encoder produced no output"), asyncErr))
		return
	}

	var out bytes.Buffer
	for _, c := range chunks {
		out.Write(c.Data)
	}

	desc, _ := codecs.Lookup(cfg.Codec)
	w.Header().Set("X-Frame-Count", strconv.Itoa(count))
	s.writeVideo(w, desc, out.Bytes())
}

func (s *Server) transcodeFile(w http.ResponseWriter, r *http.Request, data []byte) {
	req := transcode.Request{Codec: formValue(r, "codec", "vp8")}

	var err error
	if req.Bitrate, err = formInt(r, "bitrate", 0); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.TrimStart, err = formSeconds(r, "trimStart"); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.TrimDuration, err = formSeconds(r, "trimDuration"); err != nil {
		s.fail(w, r, err)
		return
	}
	if !codecs.IsSupported(req.Codec) {
		s.fail(w, r, badRequest("unsupported codec %q", req.Codec))
		return
	}

	res, err := s.transcoder.Run(r.Context(), data, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeVideo(w, res.Descriptor, res.Data)
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.fail(w, r, err)
		return
	}

	data, ok, err := formFile(r, "video")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.fail(w, r, badRequest("multipart field video is required"))
		return
	}

	cfg := s.opts.Decoder
	cfg.Codec = formValue(r, "codec", cfg.Codec)
	if cfg.CodedWidth, err = formInt(r, "codedWidth", cfg.CodedWidth); err != nil {
		s.fail(w, r, err)
		return
	}
	if cfg.CodedHeight, err = formInt(r, "codedHeight", cfg.CodedHeight); err != nil {
		s.fail(w, r, err)
		return
	}
	cfg.Delivery = codec.DeliverPerFrame

	dec := codec.NewDecoder(s.opts.Launcher,
		codec.WithLogger(s.opts.Logger),
		codec.WithFlushTimeout(s.opts.FlushTimeout),
	)
	if err := dec.Configure(cfg); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	chunk, err := media.NewEncodedChunk(media.EncodedChunkInit{Kind: media.ChunkKey, Data: data})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := dec.Decode(chunk); err != nil {
		s.fail(w, r, err)
		return
	}

	frames, err := dec.Close()
	asyncErr := collect(dec.Errors())
	if err != nil {
		s.fail(w, r, errors.Join(err, asyncErr))
		return
	}
	if len(frames) == 0 && asyncErr != nil {
		s.fail(w, r, asyncErr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"frames": len(frames)})
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	if r.ContentLength > s.opts.MaxUploadBytes {
		return &http.MaxBytesError{Limit: s.opts.MaxUploadBytes}
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return fmt.Errorf("%w: parse multipart form: %w", errBadRequest, err)
	}
	return nil
}

func (s *Server) writeVideo(w http.ResponseWriter, desc codecs.Descriptor, data []byte) {
	w.Header().Set("Content-Type", desc.MIMEType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Container-Format", string(containerinfo.DetectFormat(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), errors.Is(err, media.ErrInvalidArgument):
		status = http.StatusBadRequest
	}
	s.log.Error("Request failed: %s", err.Error())
	writeError(w, status, err.Error())
}

// collect drains a closed error channel.
func collect(ch <-chan error) error {
	var errs []error
	for err := range ch {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func formFile(r *http.Request, field string) ([]byte, bool, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, badRequest("read %s: %v", field, err)
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", field, err)
	}
	return data, true, nil
}

func formValue(r *http.Request, field, def string) string {
	if v := r.FormValue(field); v != "" {
		return v
	}
	return def
}

func formInt(r *http.Request, field string, def int) (int, error) {
	v := r.FormValue(field)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s must be an integer, got %q", field, v)
	}
	return n, nil
}

func formSeconds(r *http.Request, field string) (time.Duration, error) {
	v := r.FormValue(field)
	if v == "" {
		return 0, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0, badRequest("%s must be a non-negative number of seconds, got %q", field, v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func encoderConfigFromForm(r *http.Request) (codec.EncoderConfig, error) {
	cfg := codec.EncoderConfig{Codec: formValue(r, "codec", "vp8")}

	var err error
	if cfg.Width, err = formInt(r, "width", 0); err != nil {
		return cfg, err
	}
	if cfg.Height, err = formInt(r, "height", 0); err != nil {
		return cfg, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return cfg, badRequest("width and height are required")
	}
	if cfg.Bitrate, err = formInt(r, "bitrate", 0); err != nil {
		return cfg, err
	}
	if cfg.KeyframeInterval, err = formInt(r, "keyframeInterval", 0); err != nil {
		return cfg, err
	}
	if v := r.FormValue("framerate"); v != "" {
		if cfg.Framerate, err = strconv.ParseFloat(v, 64); err != nil {
			return cfg, badRequest("framerate must be a number, got %q", v)
		}
	}
	return cfg, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
