package e2e

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests.
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.Addr == "" {
		s.T().Skip("MINIRC_E2E_ADDR not set, skipping end-to-end suite")
	}
}

// Dial opens one client connection with a colorized header in the logs.
func (s *BaseSuite) Dial(name string) *Client {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	conn, err := net.DialTimeout("tcp", s.Config.Addr, s.Config.Timeout)
	s.Require().NoError(err)
	client := &Client{suite: s, conn: conn, reader: bufio.NewReader(conn)}
	s.T().Cleanup(client.Close)
	return client
}

// Client is one raw protocol connection to the server under test.
type Client struct {
	suite  *BaseSuite
	conn   net.Conn
	reader *bufio.Reader
}

func (c *Client) Send(line string) {
	_, err := c.conn.Write([]byte(line + "\r\n"))
	c.suite.Require().NoError(err)
}

// WaitFor reads lines until one contains the wanted substring and
// returns it; any earlier lines (greetings, replays) are skipped.
func (c *Client) WaitFor(substr string) string {
	deadline := time.Now().Add(c.suite.Config.Timeout)
	for {
		c.suite.Require().NoError(c.conn.SetReadDeadline(deadline))
		line, err := c.reader.ReadString('\n')
		c.suite.Require().NoError(err, "waiting for %q", substr)
		line = strings.TrimRight(line, "\r\n")
		if strings.Contains(line, substr) {
			return line
		}
	}
}

func (c *Client) Close() {
	_ = c.conn.Close()
}
