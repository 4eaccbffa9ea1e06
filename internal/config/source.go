package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"gopkg.in/yaml.v3"
)

// source resolves a key from the environment first and the flattened config
// file second.
type source struct {
	env   func(string) string
	file  map[string]string
	path  string
	phase string
}

type Source struct {
	Phase  string
	Path   string
	Loaded bool
}

var (
	processOnce   sync.Once
	processSource *source
	processErr    error
)

func runtimeSource() (*source, error) {
	processOnce.Do(func() {
		processSource, processErr = loadSource(os.Getenv)
	})
	return processSource, processErr
}

// CurrentSource reports which config file, if any, backs the process config.
func CurrentSource() (Source, error) {
	src, err := runtimeSource()
	if err != nil {
		return Source{}, err
	}
	return Source{Phase: src.phase, Path: src.path, Loaded: src.path != ""}, nil
}

func loadSource(env func(string) string) (*source, error) {
	src := &source{env: env, file: map[string]string{}}

	phase := strings.TrimSpace(env("CONFIG_PHASE"))
	if phase == "" {
		phase = "local"
	}
	src.phase = phase

	configPath := strings.TrimSpace(env("CONFIG_FILE"))
	explicitPath := configPath != ""
	if configPath == "" {
		configPath = filepath.Join("config", "config-"+phase+".yaml")
	}

	body, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicitPath {
			return src, nil
		}
		return nil, fmt.Errorf("read config file %q: %w", configPath, err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", configPath, err)
	}
	flattened, err := flattenConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("flatten config file %q: %w", configPath, err)
	}
	src.file = flattened
	if absPath, err := filepath.Abs(configPath); err == nil {
		src.path = absPath
	} else {
		src.path = configPath
	}
	return src, nil
}

func (s *source) value(key string) string {
	if v := strings.TrimSpace(s.env(key)); v != "" {
		return v
	}
	return strings.TrimSpace(s.file[key])
}

func (s *source) stringOr(key, fallback string) string {
	if v := s.value(key); v != "" {
		return v
	}
	return fallback
}

func (s *source) pubkey(key string, fallback solana.PublicKey) (solana.PublicKey, error) {
	raw := s.value(key)
	if raw == "" {
		return fallback, nil
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return pk, nil
}

func (s *source) commitment(key string, fallback rpc.CommitmentType) (rpc.CommitmentType, error) {
	raw := s.value(key)
	if raw == "" {
		return fallback, nil
	}
	switch strings.ToLower(raw) {
	case string(rpc.CommitmentProcessed):
		return rpc.CommitmentProcessed, nil
	case string(rpc.CommitmentConfirmed):
		return rpc.CommitmentConfirmed, nil
	case string(rpc.CommitmentFinalized):
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("invalid %s: %q (expected processed|confirmed|finalized)", key, raw)
	}
}

func (s *source) duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := s.value(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be > 0", key)
	}
	return d, nil
}

func (s *source) positiveInt(key string, fallback int) (int, error) {
	raw := s.value(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be > 0", key)
	}
	return v, nil
}

func (s *source) uint64Or(key string, fallback uint64) (uint64, error) {
	raw := s.value(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func (s *source) uint32Or(key string, fallback uint32) (uint32, error) {
	raw := s.value(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return uint32(v), nil
}

func (s *source) optionalUint(key string) (*uint, error) {
	raw := s.value(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	out := uint(v)
	return &out, nil
}

func (s *source) boolOr(key string, fallback bool) (bool, error) {
	raw := s.value(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseCSV(raw string, fallback []string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if value := strings.TrimSpace(part); value != "" {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func expandHomePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

// flattenConfig turns nested YAML into ENV-style keys: {solana: {rpc_url: x}}
// becomes SOLANA_RPC_URL=x and lists become comma-separated values.
func flattenConfig(raw map[string]any) (map[string]string, error) {
	out := make(map[string]string)
	for key, value := range raw {
		segment := normalizeKeySegment(key)
		if segment == "" {
			continue
		}
		if err := flattenValue(segment, value, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func flattenValue(prefix string, value any, out map[string]string) error {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			if segment := normalizeKeySegment(key); segment != "" {
				if err := flattenValue(prefix+"_"+segment, child, out); err != nil {
					return err
				}
			}
		}
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			switch scalar := item.(type) {
			case string:
				if v := strings.TrimSpace(scalar); v != "" {
					parts = append(parts, v)
				}
			case bool, int, int64, uint64, float64:
				parts = append(parts, fmt.Sprint(scalar))
			default:
				return fmt.Errorf("unsupported list item type %T under %q", item, prefix)
			}
		}
		out[prefix] = strings.Join(parts, ",")
	case nil:
	default:
		out[prefix] = fmt.Sprint(typed)
	}
	return nil
}

func normalizeKeySegment(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	lastUnderscore := false
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
