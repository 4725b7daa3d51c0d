package pose

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/posereps/internal/reps"
)

// Service request opcodes.
const (
	opEstimate byte = 'E'
	opClassify byte = 'C'
)

// DefaultIdleTimeout is how long an unused pose service process is kept alive.
const DefaultIdleTimeout = 30 * time.Second

// ErrNoCommand is returned when no pose service command is configured.
var ErrNoCommand = errors.New("pose service command not configured")

// ServiceConfig configures a ServiceModel.
type ServiceConfig struct {
	// Command is the pose service executable and its arguments. The model
	// directory is appended as the last argument.
	Command []string

	// ModelDir holds model.json, metadata.json and the weight shards.
	ModelDir string

	// IdleTimeout shuts the process down after this long without requests.
	IdleTimeout time.Duration

	// Stderr receives the service's diagnostic output. Defaults to os.Stderr.
	Stderr io.Writer
}

// ServiceModel implements Model by driving an external pose service process.
//
// Each request is one opcode byte, a 4-byte big-endian payload length and the
// payload: a JPEG frame for estimate, a pose JSON document for classify. The
// service answers every request with a single JSON line.
type ServiceModel struct {
	config    ServiceConfig
	metadata  *Metadata
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewServiceModel loads the model metadata and prepares the service.
// The process is started lazily on the first request.
func NewServiceModel(config ServiceConfig) (*ServiceModel, error) {
	if len(config.Command) == 0 {
		return nil, ErrNoCommand
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}

	md, err := LoadMetadata(config.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", config.ModelDir, err)
	}

	return &ServiceModel{
		config:   config,
		metadata: md,
	}, nil
}

// Name returns the model name from its metadata.
func (m *ServiceModel) Name() string {
	return m.metadata.ModelName
}

// Labels returns the trained labels from the model metadata.
func (m *ServiceModel) Labels() []string {
	return append([]string(nil), m.metadata.Labels...)
}

// Estimate sends a frame to the service and returns the estimated pose.
func (m *ServiceModel) Estimate(frame *gocv.Mat) (*Pose, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	var response struct {
		Pose  *jsonPose `json:"pose"`
		Error string    `json:"error"`
	}
	if err := m.roundTrip(opEstimate, buf.GetBytes(), &response); err != nil {
		return nil, err
	}
	if response.Error != "" {
		return nil, fmt.Errorf("pose service: %s", response.Error)
	}
	if response.Pose == nil {
		return nil, nil
	}

	return response.Pose.toPose(), nil
}

// Classify sends a pose to the service and returns one prediction per label.
func (m *ServiceModel) Classify(p *Pose) ([]reps.Prediction, error) {
	if p == nil {
		return nil, errors.New("nil pose")
	}

	payload, err := json.Marshal(fromPose(p))
	if err != nil {
		return nil, fmt.Errorf("encode pose: %w", err)
	}

	var response struct {
		Predictions []jsonPrediction `json:"predictions"`
		Error       string           `json:"error"`
	}
	if err := m.roundTrip(opClassify, payload, &response); err != nil {
		return nil, err
	}
	if response.Error != "" {
		return nil, fmt.Errorf("pose service: %s", response.Error)
	}

	predictions := make([]reps.Prediction, len(response.Predictions))
	for i, p := range response.Predictions {
		predictions[i] = reps.Prediction{Label: p.ClassName, Probability: p.Probability}
	}
	return predictions, nil
}

// Close shuts down the service process.
func (m *ServiceModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown()
}

func (m *ServiceModel) roundTrip(op byte, payload []byte, response any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureStarted(); err != nil {
		return err
	}

	header := make([]byte, 5)
	header[0] = op
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	if _, err := m.stdin.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := m.stdin.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	line, err := m.stdout.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(line, response); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	m.lastUsed = time.Now()
	m.resetIdleTimer()
	return nil
}

func (m *ServiceModel) ensureStarted() error {
	if m.started {
		return nil
	}

	args := append(append([]string(nil), m.config.Command[1:]...), m.config.ModelDir)
	m.cmd = exec.Command(m.config.Command[0], args...)

	stdin, err := m.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := m.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	m.cmd.Stderr = m.config.Stderr

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	m.stdin = stdin
	m.stdout = bufio.NewReader(stdout)
	m.started = true
	m.lastUsed = time.Now()

	return nil
}

func (m *ServiceModel) shutdown() error {
	if !m.started {
		return nil
	}

	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}

	if m.stdin != nil {
		m.stdin.Close()
	}

	err := m.cmd.Wait()
	m.started = false
	m.cmd = nil
	m.stdin = nil
	m.stdout = nil

	return err
}

func (m *ServiceModel) resetIdleTimer() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
	m.idleTimer = time.AfterFunc(m.config.IdleTimeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.shutdown()
	})
}

// jsonPose is the PoseNet pose layout used on the wire.
type jsonPose struct {
	Score     float64        `json:"score"`
	Keypoints []jsonKeypoint `json:"keypoints"`
}

type jsonKeypoint struct {
	Part     string  `json:"part"`
	Position Point2D `json:"position"`
	Score    float64 `json:"score"`
}

type jsonPrediction struct {
	ClassName   string  `json:"className"`
	Probability float64 `json:"probability"`
}

func (j *jsonPose) toPose() *Pose {
	p := &Pose{Score: j.Score}
	for i, kp := range j.Keypoints {
		idx := PartIndex(kp.Part)
		if idx < 0 && kp.Part == "" && i < NumKeypoints {
			idx = i
		}
		if idx < 0 {
			continue
		}
		p.Keypoints[idx] = Keypoint{Position: kp.Position, Score: kp.Score}
	}
	return p
}

func fromPose(p *Pose) jsonPose {
	j := jsonPose{
		Score:     p.Score,
		Keypoints: make([]jsonKeypoint, NumKeypoints),
	}
	for i, kp := range p.Keypoints {
		j.Keypoints[i] = jsonKeypoint{
			Part:     PartNames[i],
			Position: kp.Position,
			Score:    kp.Score,
		}
	}
	return j
}
