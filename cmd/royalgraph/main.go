package main

import (
	"log/slog"
	"os"
	"royalgraph/cmd/royalgraph/commands"
	"royalgraph/lib/serviceutil"
	"royalgraph/lib/telemetry"
)

func main() {
	telemetry.InitSlog(true)

	ctx := serviceutil.SignalContext()
	_, err := telemetry.SetupFromEnv(ctx, "royalgraph")
	if os.IsNotExist(err) {
		slog.Info("no telemetry.json5 found, telemetry disabled")
	} else if err != nil {
		serviceutil.Fatal("failed to set up telemetry", err)
	}
	telemetry.InstrumentPerfStats(ctx)

	commands.ExecuteContext(ctx)
}
