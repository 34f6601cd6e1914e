package ir

import "gopkg.in/yaml.v3"

// Marshal serializes a PipelineIR to its stored YAML form.
func Marshal(p *PipelineIR) ([]byte, error) {
	if p.ModeName == "" {
		p.SetMode(p.Mode)
	}
	return yaml.Marshal(p)
}

// Unmarshal decodes a stored PipelineIR blob and normalizes its mode.
func Unmarshal(data []byte) (*PipelineIR, error) {
	var p PipelineIR
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if err := p.NormalizeMode(); err != nil {
		return nil, err
	}
	return &p, nil
}
