// Package remote reads an entropy device on another host over SSH.
package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/entropyctl/internal/seed"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const DefaultDevice = "/dev/urandom"

// errConfig marks failures no retry can fix: bad config, rejected
// credentials, unknown or mismatched host key.
var errConfig = errors.New("remote source misconfigured")

// Source runs `head -c N <Device>` on Host and returns its output. Equal
// configurations compare equal and share failure state.
type Source struct {
	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	Timeout                     time.Duration
	Device                      string
}

var _ seed.Source = Source{}

type hostState struct {
	mu      sync.Mutex
	dead    atomic.Bool
	deadErr error
}

// kill records the first permanent failure; deadErr is immutable after.
func (h *hostState) kill(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dead.Load() {
		return
	}
	h.deadErr = err
	h.dead.Store(true)
}

var (
	statesMu sync.Mutex
	states   = make(map[Source]*hostState)
)

func (s Source) state() *hostState {
	statesMu.Lock()
	defer statesMu.Unlock()
	st, ok := states[s]
	if !ok {
		st = &hostState{}
		states[s] = st
	}
	return st
}

func (s Source) FillSeed(buf []byte) error {
	st := s.state()
	if st.dead.Load() {
		return seed.Failed(s.String(), st.deadErr)
	}

	out, err := s.run(len(buf))
	if err != nil {
		if errors.Is(err, errConfig) {
			st.kill(err)
		}
		return seed.Failed(s.String(), err)
	}
	if len(out) != len(buf) {
		return seed.Failedf(s.String(), "remote returned %d of %d bytes", len(out), len(buf))
	}
	copy(buf, out)
	return nil
}

// IsWorthTrying is false once the configuration was rejected.
func (s Source) IsWorthTrying() bool {
	return !s.state().dead.Load()
}

func (s Source) String() string {
	return fmt.Sprintf("ssh://%s@%s%s", s.User, s.Host, s.device())
}

func (s Source) device() string {
	if strings.TrimSpace(s.Device) == "" {
		return DefaultDevice
	}
	return s.Device
}

func (s Source) command(n int) string {
	return joinCommand("head", []string{"-c", strconv.Itoa(n), s.device()})
}

func (s Source) run(n int) ([]byte, error) {
	client, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	return session.Output(s.command(n))
}

func (s Source) dial() (*ssh.Client, error) {
	address, err := s.address()
	if err != nil {
		return nil, err
	}

	config, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	var client *ssh.Client
	if s.Timeout <= 0 {
		client, err = ssh.Dial("tcp", address, config)
	} else {
		client, err = dialTimeout(address, config, s.Timeout)
	}
	if err != nil {
		return nil, classify(err)
	}
	return client, nil
}

func dialTimeout(address string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, err
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return ssh.NewClient(clientConn, chans, reqs), nil
}

// classify marks handshake failures that cannot heal on their own.
func classify(err error) error {
	var keyErr *knownhosts.KeyError
	msg := err.Error()
	if errors.As(err, &keyErr) || strings.Contains(msg, "knownhosts:") || strings.Contains(msg, "unable to authenticate") {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	return err
}

func (s Source) address() (string, error) {
	host := strings.TrimSpace(s.Host)
	if host == "" {
		return "", fmt.Errorf("%w: ssh host is required", errConfig)
	}

	if s.Port != "" {
		return net.JoinHostPort(host, s.Port), nil
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}

	return net.JoinHostPort(host, "22"), nil
}

func (s Source) clientConfig() (*ssh.ClientConfig, error) {
	if s.User == "" {
		return nil, fmt.Errorf("%w: ssh user is required", errConfig)
	}

	signer, err := s.signer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	var hostKeyCallback ssh.HostKeyCallback
	if s.InsecureSkipHostKeyChecking {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	} else {
		callback, err := s.knownHostsCallback()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errConfig, err)
		}
		hostKeyCallback = callback
	}

	return &ssh.ClientConfig{
		User:            s.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.Timeout,
	}, nil
}

func (s Source) signer() (ssh.Signer, error) {
	if s.KeyPath == "" {
		return nil, fmt.Errorf("ssh key path is required")
	}

	privateKey, err := os.ReadFile(s.KeyPath)
	if err != nil {
		return nil, err
	}

	return ssh.ParsePrivateKey(privateKey)
}

func (s Source) knownHostsCallback() (ssh.HostKeyCallback, error) {
	path := strings.TrimSpace(s.KnownHostsPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known hosts path not set and home dir unavailable")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	return knownhosts.New(path)
}

func joinCommand(cmd string, args []string) string {
	if len(args) == 0 {
		return shellEscape(cmd)
	}

	var builder strings.Builder
	builder.WriteString(shellEscape(cmd))
	for _, arg := range args {
		builder.WriteByte(' ')
		builder.WriteString(shellEscape(arg))
	}

	return builder.String()
}

func shellEscape(value string) string {
	if value == "" {
		return "''"
	}

	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
