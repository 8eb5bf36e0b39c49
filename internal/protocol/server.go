package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-json-experiment/json"
)

var ErrInvalidRequest = errors.New("invalid request")

// extractMethod splits a "method:id" requestId into its base method name.
func extractMethod(requestID string) string {
	if idx := strings.Index(requestID, ":"); idx != -1 {
		return requestID[:idx]
	}
	return requestID
}

// Options configures a Server's transport and working directory.
type Options struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
	Cwd string
}

// Server is the stdio host loop: it frames
// requests/responses over In/Out and dispatches them through API.
type Server struct {
	r      *bufio.Reader
	w      *bufio.Writer
	stderr io.Writer
	api    *API
}

func New(opts *Options) *Server {
	if opts.Cwd == "" {
		panic("Cwd is required")
	}
	return &Server{
		r:      bufio.NewReader(opts.In),
		w:      bufio.NewWriter(opts.Out),
		stderr: opts.Err,
		api:    NewAPI(opts.Cwd),
	}
}

// Run reads framed requests until EOF or a transport error, dispatching
// each to handleRequest and writing back a framed response or error.
func (s *Server) Run() error {
	for {
		messageType, requestID, payload, err := s.readRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if messageType != MessageTypeRequest {
			return fmt.Errorf("%w: expected request, received: %s", ErrInvalidRequest, messageType.String())
		}

		method := extractMethod(requestID)
		result, err := s.handleRequest(method, payload)
		if err != nil {
			if sendErr := s.sendError(requestID, err); sendErr != nil {
				return sendErr
			}
			continue
		}
		if sendErr := s.sendResponse(requestID, result); sendErr != nil {
			return sendErr
		}
	}
}

func (s *Server) handleRequest(method string, payload []byte) ([]byte, error) {
	switch method {
	case MethodEcho:
		return payload, nil

	case MethodLoadProject:
		var params LoadProjectParams
		if err := json.Unmarshal(payload, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		resp, err := s.api.LoadProject(params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)

	case MethodTransform:
		var params TransformParams
		if err := json.Unmarshal(payload, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		resp, err := s.api.Transform(params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)

	case MethodTransformSource:
		var params TransformSourceParams
		if err := json.Unmarshal(payload, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		resp, err := s.api.TransformSource(params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)

	case MethodAnalyze:
		var params AnalyzeParams
		if err := json.Unmarshal(payload, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		resp, err := s.api.Analyze(params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)

	case MethodRelease:
		var params ReleaseParams
		if err := json.Unmarshal(payload, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return nil, s.api.Release(params)

	default:
		return nil, fmt.Errorf("unknown method: %s", method)
	}
}

func (s *Server) readRequest() (messageType MessageType, method string, payload []byte, err error) {
	t, err := s.r.ReadByte()
	if err != nil {
		return 0, "", nil, err
	}
	if MessagePackType(t) != MessagePackTypeFixedArray3 {
		return 0, "", nil, fmt.Errorf("%w: expected 0x93, got 0x%02x", ErrInvalidRequest, t)
	}

	t, err = s.r.ReadByte()
	if err != nil {
		return 0, "", nil, err
	}
	if MessagePackType(t) != MessagePackTypeU8 {
		return 0, "", nil, fmt.Errorf("%w: expected 0xCC, got 0x%02x", ErrInvalidRequest, t)
	}

	rawType, err := s.r.ReadByte()
	if err != nil {
		return 0, "", nil, err
	}
	messageType = MessageType(rawType)
	if !messageType.IsValid() {
		return 0, "", nil, fmt.Errorf("%w: invalid message type: %d", ErrInvalidRequest, messageType)
	}

	methodBytes, err := s.readBin()
	if err != nil {
		return 0, "", nil, err
	}
	method = string(methodBytes)

	payload, err = s.readBin()
	if err != nil {
		return 0, "", nil, err
	}

	return messageType, method, payload, nil
}

func (s *Server) readBin() ([]byte, error) {
	t, err := s.r.ReadByte()
	if err != nil {
		return nil, err
	}

	var size uint32
	switch MessagePackType(t) {
	case MessagePackTypeBin8:
		var size8 uint8
		if err := binary.Read(s.r, binary.BigEndian, &size8); err != nil {
			return nil, err
		}
		size = uint32(size8)
	case MessagePackTypeBin16:
		var size16 uint16
		if err := binary.Read(s.r, binary.BigEndian, &size16); err != nil {
			return nil, err
		}
		size = uint32(size16)
	case MessagePackTypeBin32:
		if err := binary.Read(s.r, binary.BigEndian, &size); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: expected bin (0xC4-0xC6), got 0x%02x", ErrInvalidRequest, t)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(s.r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Server) sendResponse(method string, result []byte) error {
	return s.writeMessage(MessageTypeResponse, method, result)
}

func (s *Server) sendError(method string, err error) error {
	return s.writeMessage(MessageTypeError, method, []byte(err.Error()))
}

func (s *Server) writeMessage(messageType MessageType, method string, payload []byte) error {
	if err := s.w.WriteByte(byte(MessagePackTypeFixedArray3)); err != nil {
		return err
	}
	if err := s.w.WriteByte(byte(MessagePackTypeU8)); err != nil {
		return err
	}
	if err := s.w.WriteByte(byte(messageType)); err != nil {
		return err
	}
	if err := s.writeBin([]byte(method)); err != nil {
		return err
	}
	if err := s.writeBin(payload); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *Server) writeBin(data []byte) error {
	length := len(data)

	switch {
	case length < 256:
		if err := s.w.WriteByte(byte(MessagePackTypeBin8)); err != nil {
			return err
		}
		if err := s.w.WriteByte(byte(length)); err != nil {
			return err
		}
	case length < 65536:
		if err := s.w.WriteByte(byte(MessagePackTypeBin16)); err != nil {
			return err
		}
		if err := binary.Write(s.w, binary.BigEndian, uint16(length)); err != nil {
			return err
		}
	default:
		if err := s.w.WriteByte(byte(MessagePackTypeBin32)); err != nil {
			return err
		}
		if err := binary.Write(s.w, binary.BigEndian, uint32(length)); err != nil {
			return err
		}
	}

	_, err := s.w.Write(data)
	return err
}
