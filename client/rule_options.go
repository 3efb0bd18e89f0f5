package smc

import (
	"github.com/mitchellh/mapstructure"

	"github.com/smcgo/smc/shared/api"
)

// Allowed values of the rule option fields.
var (
	RuleActions         = []string{"allow", "discard", "continue", "refuse", "jump", "apply_vpn", "enforce_vpn", "forward_vpn", "blacklist", "terminate"}
	ScanDetectionModes  = []string{"on", "off", "undefined"}
	ConnectionStates    = []string{"no", "loose", "normal", "strict"}
	LogLevels           = []string{"none", "stored", "transient", "essential", "alert", "undefined"}
	ApplicationLogModes = []string{"off", "default", "enforced"}
	UserLogModes        = []string{"true", "false", "enforced"}
	Months              = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

	settableLogLevels = []string{"none", "stored", "transient", "essential", "alert"}
)

const (
	defaultAuthTimeout     = 3600
	defaultTrackingTimeout = -1
)

// ConnectionTracking holds the per rule connection tracking settings.
type ConnectionTracking struct {
	MSSEnforced    bool   `mapstructure:"mss_enforced"`
	MSSEnforcedMax int    `mapstructure:"mss_enforced_max"`
	MSSEnforcedMin int    `mapstructure:"mss_enforced_min"`
	State          string `mapstructure:"state"`
	Timeout        int    `mapstructure:"timeout"`

	Extra map[string]any `mapstructure:",remain"`
}

// NewConnectionTracking returns the server defaults: no MSS enforcement and the engine's idle timeout.
func NewConnectionTracking() ConnectionTracking {
	return ConnectionTracking{Timeout: defaultTrackingTimeout}
}

// SetState sets the tracking mode.
func (c *ConnectionTracking) SetState(state string) error {
	err := validate("state", state, ConnectionStates)
	if err != nil {
		return err
	}

	c.State = state
	return nil
}

// SetMSSEnforcedMinMax sets the enforced MSS bounds in bytes.
func (c *ConnectionTracking) SetMSSEnforcedMinMax(minimum int, maximum int) error {
	if minimum < 0 || maximum < minimum {
		return &api.ValidationError{Field: "mss_enforced_min_max", Value: [2]int{minimum, maximum}}
	}

	c.MSSEnforcedMin = minimum
	c.MSSEnforcedMax = maximum
	return nil
}

// SetTimeout sets the idle timeout in seconds, -1 meaning the engine default.
func (c *ConnectionTracking) SetTimeout(seconds int) error {
	if seconds < -1 {
		return &api.ValidationError{Field: "timeout", Value: seconds}
	}

	c.Timeout = seconds
	return nil
}

// Validate checks every field against its allowed values.
func (c ConnectionTracking) Validate() error {
	if c.State != "" {
		err := validate("state", c.State, ConnectionStates)
		if err != nil {
			return err
		}
	}

	if c.MSSEnforcedMin < 0 || c.MSSEnforcedMax < c.MSSEnforcedMin {
		return &api.ValidationError{Field: "mss_enforced_min_max", Value: [2]int{c.MSSEnforcedMin, c.MSSEnforcedMax}}
	}

	if c.Timeout < -1 {
		return &api.ValidationError{Field: "timeout", Value: c.Timeout}
	}

	return nil
}

// Document returns the connection_tracking_options document.
func (c ConnectionTracking) Document() map[string]any {
	doc := extraDocument(c.Extra)
	doc["mss_enforced"] = c.MSSEnforced
	doc["mss_enforced_max"] = c.MSSEnforcedMax
	doc["mss_enforced_min"] = c.MSSEnforcedMin
	doc["timeout"] = c.Timeout
	if c.State != "" {
		doc["state"] = c.State
	}

	return doc
}

// Action is what happens to traffic matching an access rule.
type Action struct {
	Action             string             `mapstructure:"action"`
	ConnectionTracking ConnectionTracking `mapstructure:"connection_tracking_options"`
	DeepInspection     bool               `mapstructure:"deep_inspection"`
	FileFiltering      bool               `mapstructure:"file_filtering"`
	DOSProtection      bool               `mapstructure:"dos_protection"`
	ScanDetection      string             `mapstructure:"scan_detection"`
	VPN                string             `mapstructure:"vpn"`
	MobileVPN          bool               `mapstructure:"mobile_vpn"`
	UserResponse       string             `mapstructure:"user_response"`

	Extra map[string]any `mapstructure:",remain"`

	// Actions the rule accepts, empty means RuleActions.
	available []string
}

// NewAction returns the default action: allow with default connection tracking.
func NewAction() Action {
	return Action{
		Action:             "allow",
		ConnectionTracking: NewConnectionTracking(),
		ScanDetection:      "undefined",
	}
}

func (a *Action) allowedActions() []string {
	if len(a.available) > 0 {
		return a.available
	}

	return RuleActions
}

// SetAction sets the rule action.
func (a *Action) SetAction(action string) error {
	err := validate("action", action, a.allowedActions())
	if err != nil {
		return err
	}

	a.Action = action
	return nil
}

// SetScanDetection overrides the engine's scan detection for the rule.
func (a *Action) SetScanDetection(mode string) error {
	err := validate("scan_detection", mode, ScanDetectionModes)
	if err != nil {
		return err
	}

	a.ScanDetection = mode
	return nil
}

// Validate checks every field against its allowed values.
func (a Action) Validate() error {
	err := validate("action", a.Action, a.allowedActions())
	if err != nil {
		return err
	}

	if a.ScanDetection != "" {
		err = validate("scan_detection", a.ScanDetection, ScanDetectionModes)
		if err != nil {
			return err
		}
	}

	return a.ConnectionTracking.Validate()
}

// Document returns the action document.
func (a Action) Document() map[string]any {
	doc := extraDocument(a.Extra)
	doc["action"] = a.Action
	doc["connection_tracking_options"] = a.ConnectionTracking.Document()
	doc["deep_inspection"] = a.DeepInspection
	doc["file_filtering"] = a.FileFiltering
	doc["dos_protection"] = a.DOSProtection
	doc["mobile_vpn"] = a.MobileVPN
	setIfNotEmpty(doc, "scan_detection", a.ScanDetection)
	setIfNotEmpty(doc, "vpn", a.VPN)
	setIfNotEmpty(doc, "user_response", a.UserResponse)

	return doc
}

// LogOptions holds the per rule logging settings.
type LogOptions struct {
	LogAccountingInfoMode bool   `mapstructure:"log_accounting_info_mode"`
	LogClosingMode        bool   `mapstructure:"log_closing_mode"`
	LogLevel              string `mapstructure:"log_level"`
	LogPayloadAdditional  bool   `mapstructure:"log_payload_additionnal"`
	LogPayloadExcerpt     bool   `mapstructure:"log_payload_excerpt"`
	LogPayloadRecord      bool   `mapstructure:"log_payload_record"`
	LogSeverity           int    `mapstructure:"log_severity"`
	ApplicationLogging    string `mapstructure:"application_logging"`
	UserLogging           string `mapstructure:"user_logging"`

	Extra map[string]any `mapstructure:",remain"`
}

// NewLogOptions returns the server defaults: log closing only, level left to the policy.
func NewLogOptions() LogOptions {
	return LogOptions{
		LogClosingMode: true,
		LogLevel:       "undefined",
		LogSeverity:    -1,
	}
}

// SetLogLevel sets the rule's log level. Logging also turns accounting on.
func (l *LogOptions) SetLogLevel(level string) error {
	err := validate("log_level", level, settableLogLevels)
	if err != nil {
		return err
	}

	l.LogLevel = level
	l.LogAccountingInfoMode = true
	return nil
}

// SetApplicationLogging sets how application use is logged.
func (l *LogOptions) SetApplicationLogging(mode string) error {
	err := validate("application_logging", mode, ApplicationLogModes)
	if err != nil {
		return err
	}

	l.ApplicationLogging = mode
	return nil
}

// SetUserLogging sets how users are logged.
func (l *LogOptions) SetUserLogging(mode string) error {
	err := validate("user_logging", mode, UserLogModes)
	if err != nil {
		return err
	}

	l.UserLogging = mode
	return nil
}

// Validate checks every field against its allowed values.
func (l LogOptions) Validate() error {
	err := validate("log_level", l.LogLevel, LogLevels)
	if err != nil {
		return err
	}

	if l.ApplicationLogging != "" {
		err = validate("application_logging", l.ApplicationLogging, ApplicationLogModes)
		if err != nil {
			return err
		}
	}

	if l.UserLogging != "" {
		err = validate("user_logging", l.UserLogging, UserLogModes)
		if err != nil {
			return err
		}
	}

	return nil
}

// Document returns the options document.
func (l LogOptions) Document() map[string]any {
	doc := extraDocument(l.Extra)
	doc["log_accounting_info_mode"] = l.LogAccountingInfoMode
	doc["log_closing_mode"] = l.LogClosingMode
	doc["log_level"] = l.LogLevel
	doc["log_payload_additionnal"] = l.LogPayloadAdditional
	doc["log_payload_excerpt"] = l.LogPayloadExcerpt
	doc["log_payload_record"] = l.LogPayloadRecord
	doc["log_severity"] = l.LogSeverity
	setIfNotEmpty(doc, "application_logging", l.ApplicationLogging)
	setIfNotEmpty(doc, "user_logging", l.UserLogging)

	return doc
}

// AuthenticationOptions holds the per rule user authentication settings.
type AuthenticationOptions struct {
	Methods     []string `mapstructure:"methods"`
	RequireAuth bool     `mapstructure:"require_auth"`
	Timeout     int      `mapstructure:"timeout"`
	Users       []string `mapstructure:"users"`

	Extra map[string]any `mapstructure:",remain"`
}

// NewAuthenticationOptions returns the server defaults: no authentication, one hour timeout.
func NewAuthenticationOptions() AuthenticationOptions {
	return AuthenticationOptions{
		Methods: []string{},
		Timeout: defaultAuthTimeout,
		Users:   []string{},
	}
}

// SetTimeout sets the time between authentications in seconds.
func (o *AuthenticationOptions) SetTimeout(seconds int) error {
	if seconds <= 0 {
		return &api.ValidationError{Field: "timeout", Value: seconds}
	}

	o.Timeout = seconds
	return nil
}

// Validate checks every field against its allowed values.
func (o AuthenticationOptions) Validate() error {
	if o.Timeout <= 0 {
		return &api.ValidationError{Field: "timeout", Value: o.Timeout}
	}

	return nil
}

// Document returns the authentication_options document.
func (o AuthenticationOptions) Document() map[string]any {
	doc := extraDocument(o.Extra)
	doc["methods"] = stringList(o.Methods)
	doc["require_auth"] = o.RequireAuth
	doc["timeout"] = o.Timeout
	doc["users"] = stringList(o.Users)

	return doc
}

// TimeRange restricts when a rule is valid, by month.
type TimeRange struct {
	MonthRangeStart string `mapstructure:"month_range_start"`
	MonthRangeEnd   string `mapstructure:"month_range_end"`

	Extra map[string]any `mapstructure:",remain"`
}

// SetMonthRange sets the first and last month the rule is valid.
func (t *TimeRange) SetMonthRange(start string, end string) error {
	err := validate("month_range_start", start, Months)
	if err != nil {
		return err
	}

	err = validate("month_range_end", end, Months)
	if err != nil {
		return err
	}

	t.MonthRangeStart = start
	t.MonthRangeEnd = end
	return nil
}

// Validate checks every field against its allowed values.
func (t TimeRange) Validate() error {
	if t.MonthRangeStart != "" {
		err := validate("month_range_start", t.MonthRangeStart, Months)
		if err != nil {
			return err
		}
	}

	if t.MonthRangeEnd != "" {
		err := validate("month_range_end", t.MonthRangeEnd, Months)
		if err != nil {
			return err
		}
	}

	return nil
}

// Document returns the time range document.
func (t TimeRange) Document() map[string]any {
	doc := extraDocument(t.Extra)
	setIfNotEmpty(doc, "month_range_start", t.MonthRangeStart)
	setIfNotEmpty(doc, "month_range_end", t.MonthRangeEnd)

	return doc
}

func extraDocument(extra map[string]any) map[string]any {
	doc := make(map[string]any, len(extra)+8)
	for k, v := range extra {
		doc[k] = v
	}

	return doc
}

func setIfNotEmpty(doc map[string]any, key string, value string) {
	if value != "" {
		doc[key] = value
	}
}

func stringList(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}

	return out
}

// decodeOptions fills an option bag from its document.
func decodeOptions(doc any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(doc)
}
