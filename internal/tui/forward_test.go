// ABOUTME: Tests for the ordered event forwarder
// ABOUTME: Checks FIFO delivery and that pushes do not wait on a slow receiver

package tui

import (
	"sync"
	"testing"
	"time"

	"github.com/AsafNachman/file-management-system/internal/controller"
	"github.com/AsafNachman/file-management-system/internal/upload"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwarderKeepsOrder(t *testing.T) {
	var mu sync.Mutex
	var got []tea.Msg
	f := newForwarder(func(msg tea.Msg) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})
	defer f.Stop()

	var want []tea.Msg
	for i := 0; i < 50; i++ {
		for _, s := range []upload.Status{upload.StatusInFlight, upload.StatusSucceeded} {
			msg := eventMsg{ev: controller.UploadProgress{Index: i, Task: upload.Task{Status: s}}}
			want = append(want, msg)
			f.Push(msg)
		}
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

func TestForwarderPushDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	f := newForwarder(func(tea.Msg) { <-release })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			f.Push(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Push waited on the receiver")
	}

	close(release)
	f.Stop()
}
