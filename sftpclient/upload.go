// Package sftpclient は生成したドキュメントをSFTPサーバーへ配置します
package sftpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"producttree/config"
	"producttree/utils"
)

// ErrMissingCredentials は接続情報が不足している場合のエラーです
var ErrMissingCredentials = errors.New("sftp: SFTP_HOST / SFTP_USER / SFTP_PASS が設定されていません")

// ErrMissingKnownHosts はホスト鍵の検証先がない場合のエラーです
var ErrMissingKnownHosts = errors.New("sftp: SFTP_KNOWN_HOSTS が設定されていません (検証を省略する場合は SFTP_INSECURE_IGNORE_HOST_KEY=true)")

// Validate は接続に必要な設定が揃っているかを確認します
func Validate(cfg config.SFTP) error {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return ErrMissingCredentials
	}
	if !cfg.InsecureIgnoreHostKey && cfg.KnownHosts == "" {
		return ErrMissingKnownHosts
	}
	return nil
}

func hostKeyCallback(cfg config.SFTP) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(cfg.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("sftp: known_hosts 読み込みエラー: %w", err)
	}
	return cb, nil
}

// UploadDocument はデータを RemoteDir/name に書き込みます
func UploadDocument(ctx context.Context, cfg config.SFTP, name string, data []byte) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "/"
	}

	cb, err := hostKeyCallback(cfg)
	if err != nil {
		return err
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Pass)},
		HostKeyCallback: cb,
		Timeout:         20 * time.Second,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	sshClient, err := dialContext(ctx, func() (*ssh.Client, error) {
		return ssh.Dial("tcp", addr, sshCfg)
	})
	if err != nil {
		return err
	}
	defer sshClient.Close()

	sftpCli, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftp: クライアント作成エラー: %w", err)
	}
	defer sftpCli.Close()

	if err := sftpCli.MkdirAll(cfg.RemoteDir); err != nil {
		return fmt.Errorf("sftp: ディレクトリ作成エラー %s: %w", cfg.RemoteDir, err)
	}

	remotePath := path.Join(cfg.RemoteDir, name)
	dst, err := sftpCli.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftp: リモートファイル作成エラー: %w", err)
	}
	if err := writeRemote(dst, data); err != nil {
		return err
	}

	utils.LogInfo("SFTPにアップロードしました: %s:%s", cfg.Host, remotePath)
	return nil
}

// dialContext は dial を別のゴルーチンで実行し、ctx のキャンセルで待つのをやめます
// キャンセル後に確立した接続はその場で閉じます
func dialContext[C io.Closer](ctx context.Context, dial func() (C, error)) (C, error) {
	ch := make(chan dialResult[C], 1)
	go func() {
		c, err := dial()
		ch <- dialResult[C]{conn: c, err: err}
	}()

	var zero C
	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				r.conn.Close()
			}
		}()
		return zero, fmt.Errorf("sftp: 接続キャンセル: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return zero, fmt.Errorf("sftp: 接続エラー: %w", r.err)
		}
		return r.conn, nil
	}
}

type dialResult[C any] struct {
	conn C
	err  error
}

// writeRemote は data を書き込んでから閉じます。SFTPでは書き込みの失敗が Close で返ることがあります
func writeRemote(dst io.WriteCloser, data []byte) error {
	if _, err := io.Copy(dst, bytes.NewReader(data)); err != nil {
		dst.Close()
		return fmt.Errorf("sftp: アップロードエラー: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("sftp: リモートファイルのクローズエラー: %w", err)
	}
	return nil
}
