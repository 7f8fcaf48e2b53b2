package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// keyMaterial is the canonical envelope hashed into a cache key.
// json.Marshal sorts map keys, so equal value sets always produce
// identical bytes regardless of insertion order.
type keyMaterial struct {
	Workflow string         `json:"workflow"`
	Version  string         `json:"version"`
	Step     string         `json:"step"`
	Input    map[string]any `json:"input"`
	Used     map[string]any `json:"used"`
}

// Key derives the cache key for a step invocation. The used map holds
// only the state fields the step declares it reads; fields outside that
// set never influence the key.
func Key(workflow, version, step string, input, used map[string]any) (string, error) {
	raw, err := json.Marshal(keyMaterial{
		Workflow: workflow,
		Version:  version,
		Step:     step,
		Input:    input,
		Used:     used,
	})
	if err != nil {
		return "", fmt.Errorf("weft: cache key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
