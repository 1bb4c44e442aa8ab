package sftpclient

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"producttree/config"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SFTP
		want error
	}{
		{"missing credentials", config.SFTP{}, ErrMissingCredentials},
		{"missing password", config.SFTP{Host: "h", User: "u"}, ErrMissingCredentials},
		{"missing known hosts", config.SFTP{Host: "h", User: "u", Pass: "p"}, ErrMissingKnownHosts},
		{"insecure", config.SFTP{Host: "h", User: "u", Pass: "p", InsecureIgnoreHostKey: true}, nil},
		{"known hosts", config.SFTP{Host: "h", User: "u", Pass: "p", KnownHosts: "/tmp/kh"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUploadDocument_Validation(t *testing.T) {
	err := UploadDocument(context.Background(), config.SFTP{}, "doc.xml", []byte("<x/>"))
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestUploadDocument_BadKnownHosts(t *testing.T) {
	cfg := config.SFTP{
		Host:       "127.0.0.1",
		User:       "u",
		Pass:       "p",
		KnownHosts: filepath.Join(t.TempDir(), "missing_known_hosts"),
	}
	err := UploadDocument(context.Background(), cfg, "doc.xml", []byte("<x/>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known_hosts")
}

func TestUploadDocument_Canceled(t *testing.T) {
	kh := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(kh, nil, 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config.SFTP{Host: "192.0.2.1", Port: 22, User: "u", Pass: "p", KnownHosts: kh}
	err := UploadDocument(ctx, cfg, "doc.xml", []byte("<x/>"))
	require.Error(t, err)
}

type fakeConn struct {
	closed atomic.Bool
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func TestDialContext_ClosesLateConnection(t *testing.T) {
	release := make(chan struct{})
	conn := &fakeConn{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := dialContext(ctx, func() (*fakeConn, error) {
		<-release
		return conn, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)

	close(release)
	assert.Eventually(t, conn.closed.Load, time.Second, 10*time.Millisecond)
}

func TestDialContext_Result(t *testing.T) {
	conn := &fakeConn{}
	got, err := dialContext(context.Background(), func() (*fakeConn, error) { return conn, nil })
	require.NoError(t, err)
	assert.Same(t, conn, got)
	assert.False(t, conn.closed.Load())

	refused := errors.New("connection refused")
	_, err = dialContext(context.Background(), func() (*fakeConn, error) { return nil, refused })
	assert.ErrorIs(t, err, refused)
}

type remoteFile struct {
	bytes.Buffer
	writeErr error
	closeErr error
	closed   bool
}

func (f *remoteFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.Buffer.Write(p)
}

func (f *remoteFile) Close() error {
	f.closed = true
	return f.closeErr
}

func TestWriteRemote(t *testing.T) {
	f := &remoteFile{}
	require.NoError(t, writeRemote(f, []byte("<x/>")))
	assert.Equal(t, "<x/>", f.String())
	assert.True(t, f.closed)

	quota := errors.New("quota exceeded")
	f = &remoteFile{closeErr: quota}
	err := writeRemote(f, []byte("<x/>"))
	assert.ErrorIs(t, err, quota)
	assert.Contains(t, err.Error(), "クローズ")

	broken := errors.New("broken pipe")
	f = &remoteFile{writeErr: broken}
	err = writeRemote(f, []byte("<x/>"))
	assert.ErrorIs(t, err, broken)
	assert.True(t, f.closed)
}
