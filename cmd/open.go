package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"hexit/internal/buffer"
	"hexit/internal/config"
	"hexit/internal/hexutil"
	"hexit/internal/signature"
	sshclient "hexit/internal/ssh"
	"hexit/internal/storage"
	"hexit/internal/ui"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

const usage = `Usage: hexit [options] [FILE | [user@]host:PATH ...]
       command | hexit [options]

Options:
  -f, --file FILE      open FILE (may be repeated)
  -o, --offset OFFSET  start at OFFSET (decimal, or hexadecimal with 0x)
  -r, --read-only      never write back
  -h, --help           show this help
`

const stdinName = "(stdin)"

var errNothingToEdit = errors.New("nothing to edit")

type options struct {
	files     []string
	offset    uint64
	hasOffset bool
	readOnly  bool
}

// fileList collects every -f/--file occurrence.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func parseArgs(args []string, out io.Writer) (options, error) {
	fs := flag.NewFlagSet("hexit", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }

	var (
		files    fileList
		offset   string
		readOnly bool
	)
	fs.Var(&files, "f", "file to open")
	fs.Var(&files, "file", "file to open")
	fs.StringVar(&offset, "o", "", "start offset")
	fs.StringVar(&offset, "offset", "", "start offset")
	fs.BoolVar(&readOnly, "r", false, "read-only")
	fs.BoolVar(&readOnly, "read-only", false, "read-only")
	// flag stops at the first positional argument, so resume after each one
	// to let options follow file names.
	var positional []string
	for rest := args; ; {
		if err := fs.Parse(rest); err != nil {
			return options{}, err
		}
		consumed := len(rest) - len(fs.Args())
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		if consumed > 0 && args[len(args)-len(rest)-1] == "--" {
			positional = append(positional, rest...)
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}

	opts := options{
		files:    append([]string(files), positional...),
		readOnly: readOnly,
	}
	if offset != "" {
		v, err := hexutil.ParseOffset(offset)
		if err != nil {
			return options{}, fmt.Errorf("invalid offset %q: %w", offset, err)
		}
		opts.offset, opts.hasOffset = v, true
	}
	return opts, nil
}

// opener turns command line inputs into sessions. Anything interactive
// (passwords, unknown host keys) happens on the terminal before the TUI
// takes it over.
type opener struct {
	opts    options
	cfg     *config.Config
	hosts   []config.SSHHost
	clients map[string]*sshclient.Client
	order   []string
	nextID  int
	tty     *os.File
}

func newOpener(opts options, cfg *config.Config, hosts []config.SSHHost) *opener {
	return &opener{
		opts:    opts,
		cfg:     cfg,
		hosts:   hosts,
		clients: make(map[string]*sshclient.Client),
	}
}

// newSession wraps h in a cache, sniffs its type and places the cursor at
// the requested offset, or where it was left last time.
func (o *opener) newSession(h storage.Handler, recentKey string) (session, error) {
	if h.Size() == 0 {
		return session{}, fmt.Errorf("%s: %w", h.Name(), errNothingToEdit)
	}
	cache, err := buffer.NewCache[uint64](h, 0)
	if err != nil {
		return session{}, err
	}
	buf := buffer.New(cache)
	fileType := signature.Sniff(buf)

	start := o.opts.offset
	if !o.opts.hasOffset && recentKey != "" {
		start, _ = o.cfg.OffsetFor(recentKey)
	}
	log.Printf("[startup] %s: %d bytes, %d chunks, type %s, offset %d",
		h.Name(), h.Size(), cache.TotalChunks(), fileType, start)

	s := session{
		id:        o.nextID,
		model:     ui.NewHexModel(buf, fileType, o.cfg.BytesPerLine, start),
		handler:   h,
		recentKey: recentKey,
	}
	o.nextID++
	return s, nil
}

// openStdin captures r completely; the result is read-only.
func (o *opener) openStdin(r io.Reader) ([]session, error) {
	h, err := storage.ReadAll(r, stdinName)
	if err != nil {
		return nil, err
	}
	s, err := o.newSession(h, "")
	if err != nil {
		return nil, err
	}
	return []session{s}, nil
}

// openAll opens every input. On failure the ones already opened are closed
// again.
func (o *opener) openAll(ctx context.Context, args []string) ([]session, error) {
	sessions := make([]session, 0, len(args))
	for _, arg := range args {
		h, recentKey, err := o.open(ctx, arg)
		if err == nil {
			var s session
			s, err = o.newSession(h, recentKey)
			if err == nil {
				sessions = append(sessions, s)
				continue
			}
			err = errors.Join(err, h.Close())
		}
		for _, s := range sessions {
			err = errors.Join(err, s.handler.Close())
		}
		return nil, err
	}
	return sessions, nil
}

func (o *opener) open(ctx context.Context, arg string) (storage.Handler, string, error) {
	if rp, ok := remoteArg(arg); ok {
		h, err := o.openRemote(ctx, rp)
		return h, rp.String(), err
	}
	h, err := storage.OpenFile(arg, o.opts.readOnly)
	if err != nil {
		return nil, "", err
	}
	return h, h.Name(), nil
}

// remoteArg reports whether arg names a remote file. An existing local
// path always wins.
func remoteArg(arg string) (config.RemotePath, bool) {
	rp, ok := config.ParseRemotePath(arg)
	if !ok {
		return config.RemotePath{}, false
	}
	if _, err := os.Stat(arg); err == nil {
		return config.RemotePath{}, false
	}
	return rp, true
}

func (o *opener) openRemote(ctx context.Context, rp config.RemotePath) (storage.Handler, error) {
	ep := rp.Resolve(o.hosts)
	client, err := o.client(ep)
	if err != nil {
		return nil, err
	}
	r, err := storage.OpenRemote(ctx, client, rp.String(), rp.Path, o.opts.readOnly)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// client dials ep once and reuses the connection for every file on it.
func (o *opener) client(ep config.Endpoint) (*sshclient.Client, error) {
	id := ep.User + "@" + ep.Addr()
	if c, ok := o.clients[id]; ok {
		return c, nil
	}

	hk, err := sshclient.HostKeyCallback(ep.KnownHostsFile, ep.InsecureHostKey, o.confirmHostKey)
	if err != nil {
		return nil, err
	}
	auth := sshclient.AuthMethods(ep.KeyPath, func() (string, error) {
		return o.readPassword(id)
	})
	log.Printf("[startup] connecting to %s", id)
	c, err := sshclient.New(ep.Host, ep.Port, ep.User, auth, hk)
	if err != nil {
		return nil, err
	}
	o.clients[id] = c
	o.order = append(o.order, id)
	return c, nil
}

func (o *opener) clientList() []*sshclient.Client {
	list := make([]*sshclient.Client, 0, len(o.order))
	for _, id := range o.order {
		list = append(list, o.clients[id])
	}
	return list
}

func (o *opener) closeClients() {
	for _, c := range o.clientList() {
		if err := c.Close(); err != nil {
			log.Printf("[startup] close client %s: %v", c.Address(), err)
		}
	}
	clear(o.clients)
	o.order = nil
}

func (o *opener) terminal() (*os.File, error) {
	if o.tty == nil {
		tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("no terminal for prompts: %w", err)
		}
		o.tty = tty
	}
	return o.tty, nil
}

func (o *opener) closeTTY() {
	if o.tty != nil {
		_ = o.tty.Close()
		o.tty = nil
	}
}

func (o *opener) readPassword(id string) (string, error) {
	tty, err := o.terminal()
	if err != nil {
		return "", err
	}
	fmt.Fprintf(tty, "%s's password: ", id)
	pw, err := term.ReadPassword(int(tty.Fd()))
	fmt.Fprintln(tty)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func (o *opener) confirmHostKey(hostname string, key ssh.PublicKey) (bool, error) {
	tty, err := o.terminal()
	if err != nil {
		return false, err
	}
	return askHostKey(tty, tty, hostname, key)
}

// askHostKey asks the OpenSSH question about an unknown host key.
func askHostKey(in io.Reader, out io.Writer, hostname string, key ssh.PublicKey) (bool, error) {
	fmt.Fprintf(out, "The authenticity of host '%s' can't be established.\n", hostname)
	fmt.Fprintf(out, "%s key fingerprint is %s.\n", key.Type(), ssh.FingerprintSHA256(key))
	fmt.Fprint(out, "Are you sure you want to continue connecting (yes/no)? ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "yes", "y":
		return true, nil
	}
	return false, nil
}
