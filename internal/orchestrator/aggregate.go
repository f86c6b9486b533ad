package orchestrator

import (
	"github.com/turtacn/Tandem/pkg/consts"
	"github.com/turtacn/Tandem/pkg/protocol"
)

// Aggregate reduces the two outcomes of a run into one result.
//
// In legacy-sum mode the combined code is server+client whenever either is
// nonzero. Codes of opposite sign cancel: +2 and -2 report 0 although the
// run failed. Failed is set correctly in every mode and should be preferred
// by callers that do not need the legacy exit status.
func Aggregate(server, client protocol.Outcome, mode consts.AggregationMode) protocol.AggregateResult {
	res := protocol.AggregateResult{
		Server: server,
		Client: client,
		Mode:   mode,
		Failed: server.ExitCode != 0 || client.ExitCode != 0,
	}
	if !res.Failed {
		return res
	}

	switch mode {
	case consts.AggregateStrict:
		res.CombinedExitCode = client.ExitCode
		if res.CombinedExitCode == 0 {
			res.CombinedExitCode = server.ExitCode
		}
	default:
		res.CombinedExitCode = server.ExitCode + client.ExitCode
	}
	return res
}

// Personal.AI order the ending
