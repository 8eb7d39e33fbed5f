package main

import (
	"arborwatch/cmd/arborwatch/commands"
	"arborwatch/lib/serviceutil"
	"arborwatch/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.InitSlog(true)
	telemetry.SetupFromEnv(ctx, "arborwatch")
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
