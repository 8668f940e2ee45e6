package tlsroots

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// KeyPair serves a certificate and key from disk and reloads them when
// either file changes. A failed reload keeps the previous pair.
type KeyPair struct {
	certFile string
	keyFile  string
	logger   *slog.Logger
	debounce time.Duration

	mu   sync.RWMutex
	cert *tls.Certificate

	stopOnce sync.Once
	done     chan struct{}
}

// KeyPairOption configures a KeyPair.
type KeyPairOption func(*KeyPair)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) KeyPairOption {
	return func(k *KeyPair) { k.logger = logger }
}

// WithDebounce sets how long to wait after a change before reloading.
func WithDebounce(d time.Duration) KeyPairOption {
	return func(k *KeyPair) { k.debounce = d }
}

// LoadKeyPair loads the pair once. Call Watch to follow changes.
func LoadKeyPair(certFile, keyFile string, opts ...KeyPairOption) (*KeyPair, error) {
	k := &KeyPair{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   slog.Default(),
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(k)
	}

	if err := k.reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return k, nil
}

// Watch follows the directories holding the pair until Stop is called.
// Directories are watched so editors and secret mounts that replace the
// file by rename are seen.
func (k *KeyPair) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	defer watcher.Close()

	dirs := map[string]struct{}{
		filepath.Dir(k.certFile): {},
		filepath.Dir(k.keyFile):  {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("tlsroots: watch %s: %w", dir, err)
		}
	}

	certBase, keyBase := filepath.Base(k.certFile), filepath.Base(k.keyFile)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			base := filepath.Base(event.Name)
			if base != certBase && base != keyBase {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			k.logger.Debug("key pair file changed", "file", event.Name, "op", event.Op.String())

			if timer == nil {
				timer = time.AfterFunc(k.debounce, k.reloadLogged)
			} else {
				timer.Reset(k.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			k.logger.Error("key pair watcher error", "error", err)

		case <-k.done:
			return nil
		}
	}
}

// WatchAsync runs Watch in a goroutine.
func (k *KeyPair) WatchAsync() {
	go func() {
		if err := k.Watch(); err != nil {
			k.logger.Error("key pair watcher stopped", "error", err)
		}
	}()
}

// Stop ends Watch. It is safe to call more than once.
func (k *KeyPair) Stop() {
	k.stopOnce.Do(func() { close(k.done) })
}

// GetCertificate implements tls.Config.GetCertificate.
func (k *KeyPair) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.cert, nil
}

// ServerConfig returns a server TLS config backed by the pair.
func (k *KeyPair) ServerConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: k.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

func (k *KeyPair) reloadLogged() {
	if err := k.reload(); err != nil {
		k.logger.Error("key pair reload failed", "error", err, "cert_file", k.certFile)
		return
	}
	k.logger.Info("key pair reloaded", "cert_file", k.certFile)
}

func (k *KeyPair) reload() error {
	cert, err := tls.LoadX509KeyPair(k.certFile, k.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}

	k.mu.Lock()
	k.cert = &cert
	k.mu.Unlock()
	return nil
}
