package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/radieske/agent-arena/internal/arena/model"
)

// SeedAgents carrega agentes de um arquivo JSON (lista de model.Agent) para o store.
// Serve para ambientes locais, onde não existe o fluxo externo de registro.
// Agentes já existentes não são sobrescritos.
func SeedAgents(ctx context.Context, s AgentStore, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed: %w", err)
	}
	var agents []model.Agent
	if err := json.Unmarshal(raw, &agents); err != nil {
		return 0, fmt.Errorf("decode seed: %w", err)
	}
	n := 0
	for _, a := range agents {
		if a.ID == "" {
			continue
		}
		if _, err := s.GetAgent(ctx, a.ID); err == nil {
			continue
		}
		if a.Status == "" {
			a.Status = model.AgentActive
		}
		if err := s.SaveAgent(ctx, a); err != nil {
			return n, fmt.Errorf("save agent %s: %w", a.ID, err)
		}
		n++
	}
	return n, nil
}
