// Package backup copies the library database to and from a remote host over
// SFTP. Transfers only happen when an operator asks for one.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/internal/config"
)

var (
	ErrNotConfigured = errors.New("backup target not configured")
	ErrNotConnected  = errors.New("not connected")
	ErrAuth          = errors.New("ssh authentication failed")
)

// Session is one open SFTP session plus whatever carries it.
type Session struct {
	Client    *sftp.Client
	Transport io.Closer
}

// DialFunc opens an SFTP session to the configured host.
type DialFunc func(ctx context.Context, cfg config.Backup) (*Session, error)

type Option func(*Uploader)

func WithDialer(dial DialFunc) Option {
	return func(u *Uploader) { u.dial = dial }
}

func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) { u.logger = logger }
}

// Status is the running sync tally for this process.
type Status struct {
	LastSync  time.Time
	SyncCount int
}

func (s Status) String() string {
	if s.LastSync.IsZero() {
		return "never synced"
	}
	return fmt.Sprintf("last sync %s (#%d)", s.LastSync.Format("15:04:05"), s.SyncCount)
}

type Uploader struct {
	cfg    config.Backup
	dial   DialFunc
	logger *slog.Logger

	mu     sync.Mutex
	sess   *Session
	status Status
}

func NewUploader(cfg config.Backup, opts ...Option) *Uploader {
	u := &Uploader{
		cfg:    cfg,
		dial:   DialSSH,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// DialSSH authenticates with the configured password. Without a known_hosts
// file any host key is accepted.
func DialSSH(ctx context.Context, cfg config.Backup) (*Session, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("known hosts: %w", err)
		}
		hostKey = cb
	}
	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout,
	}

	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr(), err)
	}
	if cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, cfg.Addr(), sshCfg)
	if err != nil {
		conn.Close()
		if isAuthError(err) {
			return nil, fmt.Errorf("%w: %w", ErrAuth, err)
		}
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	sc, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open sftp: %w", err)
	}
	return &Session{Client: sc, Transport: client}, nil
}

func isAuthError(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// Connect opens the session. Connecting twice is a no-op.
func (u *Uploader) Connect(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.sess != nil {
		return nil
	}
	sess, err := u.dial(ctx, u.cfg)
	if err != nil {
		u.logger.Error("backup connect failed", "host", u.cfg.Host, "error", err)
		return err
	}
	u.sess = sess
	u.logger.Info("backup connected", "host", u.cfg.Host)
	return nil
}

func (u *Uploader) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.sess == nil {
		return nil
	}
	err := u.sess.Client.Close()
	if u.sess.Transport != nil {
		err = errors.Join(err, u.sess.Transport.Close())
	}
	u.sess = nil
	return err
}

func (u *Uploader) client() (*sftp.Client, error) {
	if u.sess == nil {
		return nil, ErrNotConnected
	}
	return u.sess.Client, nil
}

// Upload copies localPath to remotePath, creating the remote folder if it is
// missing.
func (u *Uploader) Upload(localPath, remotePath string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	c, err := u.client()
	if err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local: %w", err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat local: %w", err)
	}

	folder := path.Dir(remotePath)
	if _, err := c.Stat(folder); err != nil {
		if err := c.MkdirAll(folder); err != nil {
			return fmt.Errorf("create remote folder %s: %w", folder, err)
		}
		u.logger.Info("backup folder created", "folder", folder)
	}

	dst, err := c.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote: %w", err)
	}
	if _, err := dst.ReadFrom(src); err != nil {
		dst.Close()
		return fmt.Errorf("upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	u.status.LastSync = time.Now()
	u.status.SyncCount++
	u.logger.Info("backup uploaded",
		"remote", remotePath,
		"size_kb", fmt.Sprintf("%.2f", float64(info.Size())/1024),
		"count", u.status.SyncCount)
	return nil
}

// Download copies remotePath over localPath. The local file is only replaced
// once the whole transfer succeeded.
func (u *Uploader) Download(remotePath, localPath string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	c, err := u.client()
	if err != nil {
		return err
	}

	src, err := c.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote %s: %w", remotePath, err)
	}
	defer src.Close()

	tmp := localPath + ".part"
	dst, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create local: %w", err)
	}
	if _, err := src.WriteTo(dst); err != nil {
		dst.Close()
		os.Remove(tmp)
		return fmt.Errorf("download: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("download: %w", err)
	}
	if err := os.Rename(tmp, localPath); err != nil {
		return fmt.Errorf("replace local: %w", err)
	}
	u.logger.Info("backup downloaded", "local", localPath)
	return nil
}

// Sync connects, uploads and disconnects.
func (u *Uploader) Sync(ctx context.Context, localPath, remotePath string) error {
	if err := u.Connect(ctx); err != nil {
		return err
	}
	defer u.Close()
	return u.Upload(localPath, remotePath)
}

// Restore connects, downloads and disconnects.
func (u *Uploader) Restore(ctx context.Context, remotePath, localPath string) error {
	if err := u.Connect(ctx); err != nil {
		return err
	}
	defer u.Close()
	return u.Download(remotePath, localPath)
}

// TestConnection connects and lists up to three entries of the remote home
// directory.
func (u *Uploader) TestConnection(ctx context.Context) ([]string, error) {
	if err := u.Connect(ctx); err != nil {
		return nil, err
	}
	defer u.Close()

	u.mu.Lock()
	defer u.mu.Unlock()
	c, err := u.client()
	if err != nil {
		return nil, err
	}
	entries, err := c.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("list remote home: %w", err)
	}
	names := make([]string, 0, 3)
	for _, e := range entries {
		if len(names) == 3 {
			break
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (u *Uploader) Status() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}
