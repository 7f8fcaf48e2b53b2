package definition

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/weftlabs/weft/expr"
)

// ── raw YAML document shape ─────────────────────────

type rawWorkflow struct {
	Name     string            `yaml:"name"`
	Version  string            `yaml:"version"`
	Triggers []rawTrigger      `yaml:"triggers"`
	State    rawState          `yaml:"state"`
	Flow     []rawEntry        `yaml:"flow"`
	Output   map[string]string `yaml:"output"`
}

type rawState struct {
	Schema map[string]string `yaml:"schema"`
}

type rawTrigger struct {
	Kind     string         `yaml:"kind"`
	Inputs   []string       `yaml:"inputs"`
	Method   string         `yaml:"method"`
	Path     string         `yaml:"path"`
	Secret   string         `yaml:"secret"`
	Schedule string         `yaml:"schedule"`
	Static   map[string]any `yaml:"static"`
	Queue    string         `yaml:"queue"`
}

type rawEntry struct {
	Step     *rawStep     `yaml:"step"`
	Parallel *rawParallel `yaml:"parallel"`
}

type rawParallel struct {
	Group string    `yaml:"group"`
	Steps []rawStep `yaml:"steps"`
}

type rawStep struct {
	Name    string            `yaml:"name"`
	Op      string            `yaml:"op"`
	Config  map[string]any    `yaml:"config"`
	Input   map[string]string `yaml:"input"`
	Use     []string          `yaml:"use"`
	Set     []string          `yaml:"set"`
	Cache   *rawCache         `yaml:"cache"`
	Retry   *rawRetry         `yaml:"retry"`
	Timeout string            `yaml:"timeout"`
}

type rawCache struct {
	TTL int64 `yaml:"ttl"` // seconds
}

type rawRetry struct {
	Max     int    `yaml:"max"`
	Backoff string `yaml:"backoff"`
	Initial string `yaml:"initial"`
	MaxWait string `yaml:"max_wait"`
}

// ── loading ─────────────────────────────────────────

// Load parses and validates a YAML workflow definition. It fails fast
// with a *ValidationError or *ConflictError identifying the offending
// step and field; no partial graph is ever returned.
func Load(data []byte) (*Workflow, error) {
	var raw rawWorkflow
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Workflow: raw.Name, Reason: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return compile(&raw)
}

// LoadFile reads and loads a workflow definition from a file.
func LoadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("definition: read %s: %w", path, err)
	}
	return Load(data)
}

// compile converts the raw document into a validated Workflow.
func compile(raw *rawWorkflow) (*Workflow, error) {
	if raw.Name == "" {
		return nil, &ValidationError{Workflow: raw.Name, Reason: "workflow name is required"}
	}

	w := &Workflow{
		Name:    raw.Name,
		Version: raw.Version,
		State:   make(Schema, len(raw.State.Schema)),
		Output:  make(map[string]*expr.Expr, len(raw.Output)),
		steps:   make(map[string]*Step),
	}
	if w.Version == "" {
		w.Version = "1"
	}

	for field, typ := range raw.State.Schema {
		ft := FieldType(typ)
		if !knownFieldTypes[ft] {
			return nil, &ValidationError{
				Workflow: w.Name, Field: field,
				Reason: fmt.Sprintf("unknown state field type %q", typ),
			}
		}
		w.State[field] = ft
	}

	for _, rt := range raw.Triggers {
		b, err := compileTrigger(w.Name, rt)
		if err != nil {
			return nil, err
		}
		w.Triggers = append(w.Triggers, *b)
	}

	idx := 0
	for _, re := range raw.Flow {
		switch {
		case re.Step != nil && re.Parallel != nil:
			return nil, &ValidationError{
				Workflow: w.Name,
				Reason:   "flow entry declares both step and parallel",
			}
		case re.Step != nil:
			s, err := compileStep(w.Name, *re.Step, idx)
			if err != nil {
				return nil, err
			}
			idx++
			w.Flow = append(w.Flow, Entry{Step: s})
			w.order = append(w.order, s)
		case re.Parallel != nil:
			entry := Entry{Group: re.Parallel.Group}
			if entry.Group == "" {
				return nil, &ValidationError{
					Workflow: w.Name,
					Reason:   "parallel group requires a name",
				}
			}
			for _, rs := range re.Parallel.Steps {
				s, err := compileStep(w.Name, rs, idx)
				if err != nil {
					return nil, err
				}
				idx++
				entry.Parallel = append(entry.Parallel, s)
				w.order = append(w.order, s)
			}
			w.Flow = append(w.Flow, entry)
		default:
			return nil, &ValidationError{
				Workflow: w.Name,
				Reason:   "flow entry declares neither step nor parallel",
			}
		}
	}

	for field, rawExpr := range raw.Output {
		e, err := expr.Parse(rawExpr)
		if err != nil {
			return nil, &ValidationError{
				Workflow: w.Name, Field: field,
				Reason: fmt.Sprintf("invalid output expression: %v", err),
			}
		}
		w.Output[field] = e
	}

	if err := validate(w); err != nil {
		return nil, err
	}

	return w, nil
}

func compileTrigger(workflow string, rt rawTrigger) (*Binding, error) {
	kind := TriggerKind(rt.Kind)
	if !knownTriggerKinds[kind] {
		return nil, &ValidationError{
			Workflow: workflow,
			Reason:   fmt.Sprintf("unsupported trigger kind %q", rt.Kind),
		}
	}
	if kind == TriggerSchedule && rt.Schedule == "" {
		return nil, &ValidationError{
			Workflow: workflow,
			Reason:   "schedule trigger requires a schedule expression",
		}
	}
	if kind == TriggerQueue && rt.Queue == "" {
		return nil, &ValidationError{
			Workflow: workflow,
			Reason:   "queue trigger requires a queue name",
		}
	}
	return &Binding{
		Kind:     kind,
		Inputs:   rt.Inputs,
		Method:   rt.Method,
		Path:     rt.Path,
		Secret:   rt.Secret,
		Schedule: rt.Schedule,
		Static:   rt.Static,
		Queue:    rt.Queue,
	}, nil
}

func compileStep(workflow string, rs rawStep, idx int) (*Step, error) {
	if rs.Name == "" {
		return nil, &ValidationError{Workflow: workflow, Reason: "step name is required"}
	}
	if rs.Op == "" {
		return nil, &ValidationError{Workflow: workflow, Step: rs.Name, Reason: "operation kind is required"}
	}

	s := &Step{
		Name:   rs.Name,
		Op:     rs.Op,
		Config: rs.Config,
		Input:  make(map[string]*expr.Expr, len(rs.Input)),
		Use:    rs.Use,
		Set:    rs.Set,
		index:  idx,
	}

	for field, rawExpr := range rs.Input {
		e, err := expr.Parse(rawExpr)
		if err != nil {
			return nil, &ValidationError{
				Workflow: workflow, Step: rs.Name, Field: field,
				Reason: fmt.Sprintf("invalid input expression: %v", err),
			}
		}
		s.Input[field] = e
	}

	if rs.Cache != nil {
		if rs.Cache.TTL < 0 {
			return nil, &ValidationError{
				Workflow: workflow, Step: rs.Name,
				Reason: fmt.Sprintf("cache ttl must be non-negative, got %d", rs.Cache.TTL),
			}
		}
		s.Cache = CachePolicy{
			TTL:     time.Duration(rs.Cache.TTL) * time.Second,
			Enabled: rs.Cache.TTL > 0,
		}
	}

	if rs.Retry != nil {
		if rs.Retry.Max < 0 {
			return nil, &ValidationError{
				Workflow: workflow, Step: rs.Name,
				Reason: fmt.Sprintf("retry max must be non-negative, got %d", rs.Retry.Max),
			}
		}
		s.Retry = RetryPolicy{MaxRetries: rs.Retry.Max, Backoff: rs.Retry.Backoff, Declared: true}
		var err error
		if s.Retry.Initial, err = parseDuration(rs.Retry.Initial); err != nil {
			return nil, &ValidationError{
				Workflow: workflow, Step: rs.Name,
				Reason: fmt.Sprintf("invalid retry initial delay: %v", err),
			}
		}
		if s.Retry.Max, err = parseDuration(rs.Retry.MaxWait); err != nil {
			return nil, &ValidationError{
				Workflow: workflow, Step: rs.Name,
				Reason: fmt.Sprintf("invalid retry max_wait: %v", err),
			}
		}
	}

	if rs.Timeout != "" {
		d, err := time.ParseDuration(rs.Timeout)
		if err != nil {
			return nil, &ValidationError{
				Workflow: workflow, Step: rs.Name,
				Reason: fmt.Sprintf("invalid timeout: %v", err),
			}
		}
		if d < 0 {
			return nil, &ValidationError{
				Workflow: workflow, Step: rs.Name,
				Reason: "timeout must be non-negative",
			}
		}
		s.Timeout = d
	}

	return s, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
