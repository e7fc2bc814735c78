package main

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/raptodb/raptodb/internal/infra/buildinfo"
	"github.com/raptodb/raptodb/internal/raptoserver"
	"github.com/raptodb/raptodb/internal/transport"
)

func main() {
	app := &cli.App{
		Name:    "raptodb-cli",
		Usage:   "send one query to a raptodb server and print the response",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:8443", Usage: "server address"},
			&cli.BoolFlag{Name: "tls", Usage: "perform the X25519 handshake and ChaCha20-Poly1305 session cipher"},
			&cli.StringFlag{Name: "auth", Usage: "password to send after the handshake"},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "dial and frame deadline"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("usage: raptodb-cli [flags] COMMAND [ARGS...]", 1)
	}
	query := strings.Join(c.Args().Slice(), " ")

	conn, err := net.DialTimeout("tcp", c.String("addr"), c.Duration("timeout"))
	if err != nil {
		return cli.Exit(fmt.Errorf("dial: %w", err), 1)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.Duration("timeout")))

	if err := transport.WriteFrame(conn, []byte(raptoserver.Version)); err != nil {
		return cli.Exit(fmt.Errorf("send version: %w", err), 1)
	}

	var cipher *transport.SessionCipher
	if c.Bool("tls") {
		sharedKey, err := transport.ClientHandshake(conn)
		if err != nil {
			return cli.Exit(fmt.Errorf("handshake: %w", err), 1)
		}
		cipher, err = transport.NewSessionCipher(sharedKey)
		if err != nil {
			return cli.Exit(fmt.Errorf("init cipher: %w", err), 1)
		}

		if auth := c.String("auth"); auth != "" {
			if err := transport.ClientAuth(conn, cipher, []byte(auth)); err != nil {
				return cli.Exit(fmt.Errorf("auth: %w", err), 1)
			}
		}
	}

	if err := writeFrame(conn, cipher, []byte("raptodb-cli")); err != nil {
		return cli.Exit(fmt.Errorf("send name: %w", err), 1)
	}
	if err := writeFrame(conn, cipher, []byte(query)); err != nil {
		return cli.Exit(fmt.Errorf("send query: %w", err), 1)
	}

	resp, err := readFrame(conn, cipher)
	if err != nil {
		return cli.Exit(fmt.Errorf("read response: %w", err), 1)
	}

	fmt.Println(string(resp))
	if strings.HasPrefix(string(resp), "ERR: ") {
		os.Exit(1)
	}
	return nil
}

func writeFrame(conn net.Conn, cipher *transport.SessionCipher, payload []byte) error {
	if cipher != nil {
		payload = cipher.EncryptFrame(payload)
	}
	return transport.WriteFrame(conn, payload)
}

func readFrame(conn net.Conn, cipher *transport.SessionCipher) ([]byte, error) {
	frame, err := transport.ReadFrame(conn)
	if err != nil {
		return nil, err
	}
	if cipher == nil {
		return frame, nil
	}
	return cipher.DecryptFrame(frame)
}
