package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical evaluation defaults file.
const DefaultConfigPath = "config/eval.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Ground-truth stream kinds.
const (
	GroundTruthOdometry = "odometry"
	GroundTruthPose     = "pose"
)

// OdometryFields names the dotted payload paths of one odometry-like stream.
// Orientation points at a quaternion object with x, y, z and w members.
// Empty fields fall back to the defaults for the stream.
type OdometryFields struct {
	X           string `json:"x,omitempty" yaml:"x,omitempty"`
	Y           string `json:"y,omitempty" yaml:"y,omitempty"`
	Orientation string `json:"orientation,omitempty" yaml:"orientation,omitempty"`
	VX          string `json:"vx,omitempty" yaml:"vx,omitempty"`
	VY          string `json:"vy,omitempty" yaml:"vy,omitempty"`
	YawRate     string `json:"yaw_rate,omitempty" yaml:"yaw_rate,omitempty"`
}

// DefaultOdometryFields are the paths of a nav_msgs/Odometry payload.
func DefaultOdometryFields() OdometryFields {
	return OdometryFields{
		X:           "pose.pose.position.x",
		Y:           "pose.pose.position.y",
		Orientation: "pose.pose.orientation",
		VX:          "twist.twist.linear.x",
		VY:          "twist.twist.linear.y",
		YawRate:     "twist.twist.angular.z",
	}
}

// DefaultPoseFields are the paths of a geometry_msgs/TransformStamped
// payload. Pose streams carry no velocities.
func DefaultPoseFields() OdometryFields {
	return OdometryFields{
		X:           "transform.translation.x",
		Y:           "transform.translation.y",
		Orientation: "transform.rotation",
	}
}

func (f OdometryFields) withDefaults(d OdometryFields) OdometryFields {
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return OdometryFields{
		X:           pick(f.X, d.X),
		Y:           pick(f.Y, d.Y),
		Orientation: pick(f.Orientation, d.Orientation),
		VX:          pick(f.VX, d.VX),
		VY:          pick(f.VY, d.VY),
		YawRate:     pick(f.YawRate, d.YawRate),
	}
}

// EvalConfig is the root configuration of the evaluation tools. Every field
// is optional; the Get* methods supply defaults for anything left unset, so
// partial files are safe.
type EvalConfig struct {
	// Synchronizer
	MaxTimeDelta   *float64 `json:"max_time_delta,omitempty" yaml:"max_time_delta,omitempty"`
	SearchWindow   *int     `json:"search_window,omitempty" yaml:"search_window,omitempty"`
	LookupStrategy *string  `json:"lookup_strategy,omitempty" yaml:"lookup_strategy,omitempty"` // "binary" or "window"

	// Ground-truth evaluation
	EstimateTopic     *string         `json:"estimate_topic,omitempty" yaml:"estimate_topic,omitempty"`
	EstimateFields    *OdometryFields `json:"estimate_fields,omitempty" yaml:"estimate_fields,omitempty"`
	GroundTruthTopic  *string         `json:"ground_truth_topic,omitempty" yaml:"ground_truth_topic,omitempty"`
	GroundTruthKind   *string         `json:"ground_truth_kind,omitempty" yaml:"ground_truth_kind,omitempty"` // "odometry" or "pose"
	GroundTruthFields *OdometryFields `json:"ground_truth_fields,omitempty" yaml:"ground_truth_fields,omitempty"`
	VelocityAlpha     *float64        `json:"velocity_alpha,omitempty" yaml:"velocity_alpha,omitempty"`
	Normalize         *bool           `json:"normalize,omitempty" yaml:"normalize,omitempty"`

	// Command evaluation
	CommandTopic  *string `json:"command_topic,omitempty" yaml:"command_topic,omitempty"`
	CommandField  *string `json:"command_field,omitempty" yaml:"command_field,omitempty"`
	EstimateField *string `json:"estimate_field,omitempty" yaml:"estimate_field,omitempty"`

	// Trajectory, rolling mean and state-estimate comparison
	StartOffset *float64 `json:"start_offset,omitempty" yaml:"start_offset,omitempty"`
	MaxTime     *float64 `json:"max_time,omitempty" yaml:"max_time,omitempty"`
	MeanWindow  *float64 `json:"mean_window,omitempty" yaml:"mean_window,omitempty"`
	SampleRate  *float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`

	// Aligner
	AlignMethod   *string  `json:"align_method,omitempty" yaml:"align_method,omitempty"` // "icp" or "bfgs"
	RotationSeeds *int     `json:"rotation_seeds,omitempty" yaml:"rotation_seeds,omitempty"`
	CentroidInit  *bool    `json:"centroid_init,omitempty" yaml:"centroid_init,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	AlignTol      *float64 `json:"align_tolerance,omitempty" yaml:"align_tolerance,omitempty"`
	WaypointTopic *string  `json:"waypoint_topic,omitempty" yaml:"waypoint_topic,omitempty"`

	// Lap search
	ScalarTopic   *string  `json:"scalar_topic,omitempty" yaml:"scalar_topic,omitempty"`
	LapTopic      *string  `json:"lap_topic,omitempty" yaml:"lap_topic,omitempty"`
	InitialScalar *float64 `json:"initial_scalar,omitempty" yaml:"initial_scalar,omitempty"`

	// Output
	PlotFormat *string `json:"plot_format,omitempty" yaml:"plot_format,omitempty"`
	HTML       *bool   `json:"html,omitempty" yaml:"html,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyEvalConfig returns an EvalConfig with all fields set to nil.
func EmptyEvalConfig() *EvalConfig {
	return &EvalConfig{}
}

// Load reads an EvalConfig from a .json, .yaml or .yml file of at most 1MB
// and validates it.
func Load(path string) (*EvalConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyEvalConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns an empty config when path is empty.
func LoadOrDefault(path string) (*EvalConfig, error) {
	if path == "" {
		return EmptyEvalConfig(), nil
	}
	return Load(path)
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories and
// panics if the file cannot be loaded. Intended for test setup.
func MustLoadDefaultConfig() *EvalConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/ or cmd/drive-eval/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *EvalConfig) Validate() error {
	if c.MaxTimeDelta != nil && !(*c.MaxTimeDelta > 0) {
		return fmt.Errorf("max_time_delta must be positive, got %v", *c.MaxTimeDelta)
	}
	if c.SearchWindow != nil && *c.SearchWindow < 0 {
		return fmt.Errorf("search_window must be non-negative, got %d", *c.SearchWindow)
	}
	if c.LookupStrategy != nil {
		switch *c.LookupStrategy {
		case "binary", "window":
		default:
			return fmt.Errorf("lookup_strategy must be \"binary\" or \"window\", got %q", *c.LookupStrategy)
		}
	}
	if c.GroundTruthKind != nil {
		switch *c.GroundTruthKind {
		case GroundTruthOdometry, GroundTruthPose:
		default:
			return fmt.Errorf("ground_truth_kind must be %q or %q, got %q", GroundTruthOdometry, GroundTruthPose, *c.GroundTruthKind)
		}
	}
	if c.VelocityAlpha != nil && (*c.VelocityAlpha < 0 || *c.VelocityAlpha > 1) {
		return fmt.Errorf("velocity_alpha must be between 0 and 1, got %v", *c.VelocityAlpha)
	}
	if c.StartOffset != nil && *c.StartOffset < 0 {
		return fmt.Errorf("start_offset must be non-negative, got %v", *c.StartOffset)
	}
	if c.MeanWindow != nil && *c.MeanWindow < 0 {
		return fmt.Errorf("mean_window must be non-negative, got %v", *c.MeanWindow)
	}
	if c.SampleRate != nil && !(*c.SampleRate > 0) {
		return fmt.Errorf("sample_rate must be positive, got %v", *c.SampleRate)
	}
	if c.AlignMethod != nil {
		switch *c.AlignMethod {
		case "icp", "bfgs":
		default:
			return fmt.Errorf("align_method must be \"icp\" or \"bfgs\", got %q", *c.AlignMethod)
		}
	}
	if c.RotationSeeds != nil && *c.RotationSeeds < 1 {
		return fmt.Errorf("rotation_seeds must be at least 1, got %d", *c.RotationSeeds)
	}
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", *c.MaxIterations)
	}
	if c.PlotFormat != nil {
		switch *c.PlotFormat {
		case "pdf", "png", "svg":
		default:
			return fmt.Errorf("plot_format must be pdf, png or svg, got %q", *c.PlotFormat)
		}
	}
	return nil
}

// GetMaxTimeDelta returns the max_time_delta value or the default.
func (c *EvalConfig) GetMaxTimeDelta() float64 {
	if c.MaxTimeDelta == nil {
		return 0.1
	}
	return *c.MaxTimeDelta
}

// GetSearchWindow returns the search_window value or the default.
func (c *EvalConfig) GetSearchWindow() int {
	if c.SearchWindow == nil {
		return 50
	}
	return *c.SearchWindow
}

// GetLookupStrategy returns the lookup_strategy value or the default.
func (c *EvalConfig) GetLookupStrategy() string {
	if c.LookupStrategy == nil {
		return "binary"
	}
	return *c.LookupStrategy
}

// GetEstimateTopic returns the estimate_topic value or the default.
func (c *EvalConfig) GetEstimateTopic() string {
	if c.EstimateTopic == nil {
		return "/car_state/odom"
	}
	return *c.EstimateTopic
}

// GetEstimateFields returns the estimate field paths merged with the
// odometry defaults.
func (c *EvalConfig) GetEstimateFields() OdometryFields {
	if c.EstimateFields == nil {
		return DefaultOdometryFields()
	}
	return c.EstimateFields.withDefaults(DefaultOdometryFields())
}

// GetGroundTruthTopic returns the ground_truth_topic value or the default.
func (c *EvalConfig) GetGroundTruthTopic() string {
	if c.GroundTruthTopic == nil {
		return "/vesc/odom"
	}
	return *c.GroundTruthTopic
}

// GetGroundTruthKind returns the ground_truth_kind value or the default.
func (c *EvalConfig) GetGroundTruthKind() string {
	if c.GroundTruthKind == nil {
		return GroundTruthOdometry
	}
	return *c.GroundTruthKind
}

// GetGroundTruthFields returns the ground-truth field paths merged with the
// defaults for the configured ground-truth kind.
func (c *EvalConfig) GetGroundTruthFields() OdometryFields {
	def := DefaultOdometryFields()
	if c.GetGroundTruthKind() == GroundTruthPose {
		def = DefaultPoseFields()
	}
	if c.GroundTruthFields == nil {
		return def
	}
	return c.GroundTruthFields.withDefaults(def)
}

// GetVelocityAlpha returns the velocity_alpha value or the default.
func (c *EvalConfig) GetVelocityAlpha() float64 {
	if c.VelocityAlpha == nil {
		return 0.1
	}
	return *c.VelocityAlpha
}

// GetNormalize returns the normalize value or the default.
func (c *EvalConfig) GetNormalize() bool {
	if c.Normalize == nil {
		return true
	}
	return *c.Normalize
}

// GetCommandTopic returns the command_topic value or the default.
func (c *EvalConfig) GetCommandTopic() string {
	if c.CommandTopic == nil {
		return "/vesc/high_level/ackermann_cmd_mux/input/nav_1"
	}
	return *c.CommandTopic
}

// GetCommandField returns the command_field value or the default.
func (c *EvalConfig) GetCommandField() string {
	if c.CommandField == nil {
		return "drive.speed"
	}
	return *c.CommandField
}

// GetEstimateField returns the estimate_field value or the default.
func (c *EvalConfig) GetEstimateField() string {
	if c.EstimateField == nil {
		return "twist.twist.linear.x"
	}
	return *c.EstimateField
}

// GetStartOffset returns the start_offset value or the default.
func (c *EvalConfig) GetStartOffset() float64 {
	if c.StartOffset == nil {
		return 0
	}
	return *c.StartOffset
}

// GetMaxTime returns the max_time value or the default. Zero means no limit.
func (c *EvalConfig) GetMaxTime() float64 {
	if c.MaxTime == nil {
		return 0
	}
	return *c.MaxTime
}

// GetMeanWindow returns the mean_window value or the default.
func (c *EvalConfig) GetMeanWindow() float64 {
	if c.MeanWindow == nil {
		return 5
	}
	return *c.MeanWindow
}

// GetSampleRate returns the sample_rate value or the default.
func (c *EvalConfig) GetSampleRate() float64 {
	if c.SampleRate == nil {
		return 40
	}
	return *c.SampleRate
}

// GetAlignMethod returns the align_method value or the default.
func (c *EvalConfig) GetAlignMethod() string {
	if c.AlignMethod == nil {
		return "icp"
	}
	return *c.AlignMethod
}

// GetRotationSeeds returns the rotation_seeds value or the default.
func (c *EvalConfig) GetRotationSeeds() int {
	if c.RotationSeeds == nil {
		return 8
	}
	return *c.RotationSeeds
}

// GetCentroidInit returns the centroid_init value or the default.
func (c *EvalConfig) GetCentroidInit() bool {
	if c.CentroidInit == nil {
		return true
	}
	return *c.CentroidInit
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *EvalConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return 200
	}
	return *c.MaxIterations
}

// GetAlignTolerance returns the align_tolerance value or the default.
func (c *EvalConfig) GetAlignTolerance() float64 {
	if c.AlignTol == nil {
		return 1e-10
	}
	return *c.AlignTol
}

// GetWaypointTopic returns the waypoint_topic value or the default.
func (c *EvalConfig) GetWaypointTopic() string {
	if c.WaypointTopic == nil {
		return "/global_waypoints"
	}
	return *c.WaypointTopic
}

// GetScalarTopic returns the scalar_topic value or the default.
func (c *EvalConfig) GetScalarTopic() string {
	if c.ScalarTopic == nil {
		return "/dyn_sector_server/parameter_updates"
	}
	return *c.ScalarTopic
}

// GetLapTopic returns the lap_topic value or the default.
func (c *EvalConfig) GetLapTopic() string {
	if c.LapTopic == nil {
		return "/lap_data"
	}
	return *c.LapTopic
}

// GetInitialScalar returns the initial_scalar value or the default.
func (c *EvalConfig) GetInitialScalar() float64 {
	if c.InitialScalar == nil {
		return 0.7
	}
	return *c.InitialScalar
}

// GetPlotFormat returns the plot_format value or the default.
func (c *EvalConfig) GetPlotFormat() string {
	if c.PlotFormat == nil {
		return "pdf"
	}
	return *c.PlotFormat
}

// GetHTML returns the html value or the default.
func (c *EvalConfig) GetHTML() bool {
	if c.HTML == nil {
		return false
	}
	return *c.HTML
}
