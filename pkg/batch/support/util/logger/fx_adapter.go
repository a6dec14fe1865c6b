package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLoggerAdapter routes fx lifecycle events through the package logger.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter creates a new FxLoggerAdapter.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

// LogEvent implements fxevent.Logger.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			Errorf("OnStart hook failed: %s, error: %v", trimFuncName(e.FunctionName), e.Err)
		} else {
			Debugf("OnStart hook executed: %s", trimFuncName(e.FunctionName))
		}
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			Errorf("OnStop hook failed: %s, error: %v", trimFuncName(e.FunctionName), e.Err)
		} else {
			Debugf("OnStop hook executed: %s", trimFuncName(e.FunctionName))
		}
	case *fxevent.Supplied:
		if e.Err != nil {
			Errorf("Supply failed for %s: %v", e.TypeName, e.Err)
		}
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("Provide failed for %s: %v", trimFuncName(e.ConstructorName), e.Err)
			return
		}
		for _, typeName := range e.OutputTypeNames {
			Debugf("Provided: %s", typeName)
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("Invoke failed: %s, error: %v", trimFuncName(e.FunctionName), e.Err)
		}
	case *fxevent.Stopping:
		Debugf("Stopping on signal: %s", e.Signal)
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("Stop failed: %v", e.Err)
		}
	case *fxevent.RollingBack:
		Errorf("Start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			Errorf("Rollback failed: %v", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("Start failed: %v", e.Err)
		} else {
			Debugf("Application container started.")
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			Errorf("Logger initialization failed: %v", e.Err)
		}
	}
}

// trimFuncName drops the anonymous ".funcN" suffix fx reports for closures.
func trimFuncName(funcName string) string {
	if idx := strings.LastIndex(funcName, ".func"); idx != -1 {
		return funcName[:idx]
	}
	return funcName
}
