package provision

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/piougy/CzechIdMng-sub011/internal/connector"
	"github.com/piougy/CzechIdMng-sub011/internal/faults"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// Executor dispatches instructions to connectors. Writes to the same
// (system, uid) are serialized through a keyed lock; writes to different
// accounts proceed independently. Every connector call carries a timeout so
// a hung remote cannot hold a lock indefinitely.
type Executor struct {
	registry connector.Registry
	timeout  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewExecutor creates an executor resolving connectors from the registry.
func NewExecutor(registry connector.Registry, timeout time.Duration) *Executor {
	return &Executor{
		registry: registry,
		timeout:  timeout,
		locks:    map[string]*sync.Mutex{},
	}
}

// Execute validates system capabilities and performs the remote write.
func (e *Executor) Execute(ctx context.Context, system *models.System, inst *Instruction) error {
	if system.Disabled {
		return faults.Connector("system_disabled", map[string]any{"system": system.Name})
	}
	if system.Readonly {
		return faults.Connector("system_readonly", map[string]any{"system": system.Name})
	}
	if inst.PasswordChange && !system.SupportsPasswordChange {
		return faults.Connector("password_change_unsupported", map[string]any{
			"system": system.Name,
		})
	}

	conn, ok := e.registry.Get(system.ConnectorKey)
	if !ok {
		return faults.Configuration("connector_not_registered", map[string]any{
			"connector": system.ConnectorKey,
			"system":    system.Name,
		})
	}

	lock := e.lockFor(system.ID, inst.UID)
	lock.Lock()
	defer lock.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err := e.dispatch(callCtx, conn, inst)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return faults.ConnectorWrap("timeout", map[string]any{
				"system": system.Name,
				"uid":    inst.UID,
			}, err)
		}
		return err
	}

	log.Printf("[provision] %s system=%s uid=%s attrs=%v", inst.Kind, system.Name, inst.UID, inst.AttributeNames())
	return nil
}

func (e *Executor) dispatch(ctx context.Context, conn connector.Connector, inst *Instruction) error {
	switch inst.Kind {
	case OperationCreate:
		return conn.CreateObject(ctx, connector.Record{
			UID:        inst.UID,
			Attributes: mergedAttributes(inst),
		})
	case OperationUpdate:
		return conn.UpdateObject(ctx, inst.UID, inst.NewUID, mergedAttributes(inst))
	case OperationDelete:
		return conn.DeleteObject(ctx, inst.UID)
	}
	return faults.Configuration("unknown_operation", map[string]any{"kind": string(inst.Kind)})
}

// mergedAttributes joins plain and confidential attributes for the wire.
// Confidential values reach the connector but never the logs.
func mergedAttributes(inst *Instruction) map[string][]string {
	merged := make(map[string][]string, len(inst.Attributes)+len(inst.Confidential))
	for k, v := range inst.Attributes {
		merged[k] = v
	}
	for k, v := range inst.Confidential {
		merged[k] = v
	}
	return merged
}

func (e *Executor) lockFor(systemID, uid string) *sync.Mutex {
	key := systemID + "\x00" + uid
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}
