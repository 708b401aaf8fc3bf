package attestation

import (
	"log/slog"

	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// SimulationGate accepts every message1 without looking at the report.
type SimulationGate struct {
	log *slog.Logger
}

func NewSimulationGate(log *slog.Logger) *SimulationGate {
	return &SimulationGate{log: log}
}

func (*SimulationGate) Mode() Mode { return ModeSimulation }

func (g *SimulationGate) Verify(msg1 *interfaces.Message1) error {
	g.log.Warn("Not running remote attestation because executing in simulation mode",
		slog.Int("reportSize", len(msg1.Report)))
	return nil
}
