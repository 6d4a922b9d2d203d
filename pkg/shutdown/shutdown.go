package shutdown

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const defaultTimeout = 15 * time.Second

// Manager cancels the service context on SIGINT/SIGTERM and then runs the
// registered tasks, most recently registered first.
type Manager struct {
	mu            sync.Mutex
	cancelFunc    context.CancelFunc
	shutdownTasks []func(context.Context) error
	timeout       time.Duration
}

func NewManager(ctx context.Context) (context.Context, *Manager) {
	ctx, cancel := context.WithCancel(ctx)
	return ctx, &Manager{
		cancelFunc: cancel,
		timeout:    defaultTimeout,
	}
}

func (sm *Manager) Register(task func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownTasks = append(sm.shutdownTasks, task)
}

// Shutdown cancels the root context and runs every task once. Task errors are
// logged and counted, never fatal.
func (sm *Manager) Shutdown(ctx context.Context) int {
	sm.cancelFunc()

	sm.mu.Lock()
	tasks := sm.shutdownTasks
	sm.shutdownTasks = nil
	sm.mu.Unlock()

	failed := 0
	for i := len(tasks) - 1; i >= 0; i-- {
		if err := tasks[i](ctx); err != nil {
			log.Printf("[SHUTDOWN] Error during shutdown: %v", err)
			failed++
		}
	}
	return failed
}

func (sm *Manager) StartListening() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("[SHUTDOWN] Received signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
		defer cancel()
		sm.Shutdown(ctx)

		log.Println("[SHUTDOWN] Graceful shutdown complete")
		os.Exit(0)
	}()
}
