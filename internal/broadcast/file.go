package broadcast

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxFileSize is the size past which a publisher truncates the channel file
// before appending. Readers notice the shrink and start again from offset 0.
var maxFileSize int64 = 64 << 10

// FileChannel is an endpoint backed by a JSON-lines file. Every painel process
// for an origin appends to and watches the same file, so it reaches sibling
// processes on the same machine. Lines are only read once, so the file is
// truncated whenever it outgrows maxFileSize.
type FileChannel struct {
	path     string
	sender   string
	logger   zerolog.Logger
	handlers *handlerSet
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	offset  int64
	partial []byte

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// OpenFile opens the named channel inside dir, creating both if needed. Only
// lines appended after this call are delivered.
func OpenFile(dir, name string, zlog zerolog.Logger) (*FileChannel, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create channel directory: %w", err)
	}

	path := filepath.Join(dir, name+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel file: %w", err)
	}
	info, err := f.Stat()
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to stat channel file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory rather than the file so a recreated file is picked up
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch channel directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &FileChannel{
		path:     path,
		sender:   uuid.NewString(),
		logger:   zlog.With().Str("channel", name).Logger(),
		handlers: newHandlerSet(),
		watcher:  watcher,
		offset:   info.Size(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go c.processEvents()

	return c, nil
}

// Path returns the backing file
func (c *FileChannel) Path() string {
	return c.path
}

func (c *FileChannel) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ctx.Err() != nil {
		return ErrClosed
	}

	line, err := encodeEnvelope(c.sender, msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open channel file: %w", err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() >= maxFileSize {
		if err := f.Truncate(0); err != nil {
			return fmt.Errorf("failed to compact channel file: %w", err)
		}
		c.logger.Debug().Int64("size", info.Size()).Msg("Compacted channel file")
	}

	// A single O_APPEND write keeps lines from concurrent publishers whole
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (c *FileChannel) Subscribe(h Handler) (Subscription, error) {
	if c.ctx.Err() != nil {
		return nil, ErrClosed
	}
	return c.handlers.add(h), nil
}

func (c *FileChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.watcher.Close()
		<-c.done
	})
	return err
}

func (c *FileChannel) processEvents() {
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return

		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != c.path {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				c.readNew()
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				c.mu.Lock()
				c.offset = 0
				c.partial = nil
				c.mu.Unlock()
			}

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn().Err(err).Msg("Channel watcher error")
		}
	}
}

// readNew delivers every complete line appended since the last read
func (c *FileChannel) readNew() {
	c.mu.Lock()
	lines, err := c.readLinesLocked()
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read channel file")
		return
	}

	for _, line := range lines {
		env, err := decodeEnvelope(line)
		if err != nil {
			c.logger.Debug().Err(err).Msg("Dropping malformed channel message")
			continue
		}
		if env.Sender == c.sender {
			continue
		}
		c.handlers.dispatch(env.Data)
	}
}

func (c *FileChannel) readLinesLocked() ([][]byte, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < c.offset {
		// truncated by someone else
		c.offset = 0
		c.partial = nil
	}

	if _, err := f.Seek(c.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	c.offset += int64(len(data))

	data = append(c.partial, data...)
	parts := bytes.Split(data, []byte{'\n'})
	c.partial = append([]byte(nil), parts[len(parts)-1]...)

	lines := make([][]byte, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		if len(bytes.TrimSpace(p)) > 0 {
			lines = append(lines, p)
		}
	}
	return lines, nil
}
