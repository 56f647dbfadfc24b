package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/orbit-attitude-sim/core"
	"github.com/signalsfoundry/orbit-attitude-sim/model"
)

// Stream writes each command as a length-delimited google.protobuf.Struct so
// an external viewer can replay the run.
type Stream struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	count  int
	err    error
}

// NewStream wraps w. If w is an io.Closer, Close closes it.
func NewStream(w io.Writer) *Stream {
	s := &Stream{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Render implements core.CommandRenderer. After the first write error all
// further commands are dropped; Err reports it.
func (s *Stream) Render(cmd core.DrawCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	msg, err := encodeCommand(cmd)
	if err == nil {
		_, err = protodelim.MarshalTo(s.w, msg)
	}
	if err != nil {
		s.err = fmt.Errorf("write draw command %d: %w", s.count, err)
		return
	}
	s.count++
}

func (s *Stream) DrawSegment(from, to model.Vec3, c model.Color) {
	s.Render(core.DrawCommand{Kind: core.DrawSegment, From: from, To: to, Color: c})
}

func (s *Stream) DrawArrow(from, to model.Vec3, c model.Color) {
	s.Render(core.DrawCommand{Kind: core.DrawArrow, From: from, To: to, Color: c})
}

// Flush pushes buffered commands to the underlying writer.
func (s *Stream) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if err := s.w.Flush(); err != nil {
		s.err = fmt.Errorf("flush stream: %w", err)
	}
}

// Count reports how many commands were written.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Err returns the first write error, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close flushes and closes the underlying writer.
func (s *Stream) Close() error {
	s.Flush()
	var closeErr error
	if s.closer != nil {
		closeErr = s.closer.Close()
	}
	return errors.Join(s.Err(), closeErr)
}

// ReadStream decodes commands written by Stream until EOF.
func ReadStream(r io.Reader) iter.Seq2[core.DrawCommand, error] {
	return func(yield func(core.DrawCommand, error) bool) {
		br := bufio.NewReader(r)
		for i := 0; ; i++ {
			msg := &structpb.Struct{}
			if err := protodelim.UnmarshalFrom(br, msg); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield(core.DrawCommand{}, fmt.Errorf("read draw command %d: %w", i, err))
				return
			}
			cmd, err := decodeCommand(msg)
			if err != nil {
				yield(core.DrawCommand{}, fmt.Errorf("decode draw command %d: %w", i, err))
				return
			}
			if !yield(cmd, nil) {
				return
			}
		}
	}
}

func encodeCommand(cmd core.DrawCommand) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"kind":   cmd.Kind.String(),
		"entity": cmd.EntityID,
		"tick":   float64(cmd.Tick),
		"from":   vecList(cmd.From),
		"to":     vecList(cmd.To),
		"color":  []any{cmd.Color.R, cmd.Color.G, cmd.Color.B},
	})
}

func decodeCommand(msg *structpb.Struct) (core.DrawCommand, error) {
	fields := msg.GetFields()
	var cmd core.DrawCommand

	switch kind := fields["kind"].GetStringValue(); kind {
	case core.DrawSegment.String():
		cmd.Kind = core.DrawSegment
	case core.DrawArrow.String():
		cmd.Kind = core.DrawArrow
	default:
		return cmd, fmt.Errorf("unknown kind %q", kind)
	}
	cmd.EntityID = fields["entity"].GetStringValue()
	cmd.Tick = uint64(fields["tick"].GetNumberValue())

	from, err := triple(fields["from"])
	if err != nil {
		return cmd, fmt.Errorf("from: %w", err)
	}
	to, err := triple(fields["to"])
	if err != nil {
		return cmd, fmt.Errorf("to: %w", err)
	}
	rgb, err := triple(fields["color"])
	if err != nil {
		return cmd, fmt.Errorf("color: %w", err)
	}
	cmd.From = model.Vec3{X: from[0], Y: from[1], Z: from[2]}
	cmd.To = model.Vec3{X: to[0], Y: to[1], Z: to[2]}
	cmd.Color = model.Color{R: rgb[0], G: rgb[1], B: rgb[2]}
	return cmd, nil
}

func vecList(v model.Vec3) []any { return []any{v.X, v.Y, v.Z} }

func triple(v *structpb.Value) ([3]float64, error) {
	var out [3]float64
	values := v.GetListValue().GetValues()
	if len(values) != 3 {
		return out, fmt.Errorf("expected 3 components, got %d", len(values))
	}
	for i, c := range values {
		out[i] = c.GetNumberValue()
	}
	return out, nil
}
