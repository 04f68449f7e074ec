package page

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/vplayer/internal/app/playback"
)

// Terminal is a line-oriented Page. Each input line names a button keyword;
// displays print "<id>: <text>" lines.
type Terminal struct {
	in io.Reader

	outMu sync.Mutex
	out   io.Writer

	mu       sync.Mutex
	media    map[string]playback.MediaElement
	buttons  map[string]*terminalButton
	keywords map[string]string // keyword -> button id
	displays map[string]*terminalDisplay
	commands map[string]func()
}

// NewTerminal creates a terminal page reading commands from in and writing
// display updates to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:       in,
		out:      out,
		media:    make(map[string]playback.MediaElement),
		buttons:  make(map[string]*terminalButton),
		keywords: make(map[string]string),
		displays: make(map[string]*terminalDisplay),
		commands: make(map[string]func()),
	}
}

// Ensure Terminal implements Page.
var _ Page = (*Terminal)(nil)

// AddMedia registers a media element under id.
func (t *Terminal) AddMedia(id string, el playback.MediaElement) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.media[id] = el
}

// AddButton registers a button under id, clicked by typing keyword.
func (t *Terminal) AddButton(id, keyword string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buttons[id] = &terminalButton{}
	t.keywords[keyword] = id
}

// AddDisplay registers a display under id.
func (t *Terminal) AddDisplay(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.displays[id] = &terminalDisplay{id: id, term: t}
}

// AddCommand registers a keyword that runs fn directly, outside the page
// controls (for example to inject element failures).
func (t *Terminal) AddCommand(keyword string, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands[keyword] = fn
}

// MediaElement implements Page.
func (t *Terminal) MediaElement(id string) (playback.MediaElement, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.media[id]
	return el, ok
}

// Button implements Page.
func (t *Terminal) Button(id string) (Button, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buttons[id]
	return b, ok
}

// Display implements Page.
func (t *Terminal) Display(id string) (Display, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.displays[id]
	return d, ok
}

// Click clicks the button bound to keyword and reports whether one exists.
func (t *Terminal) Click(keyword string) bool {
	t.mu.Lock()
	var fn func()
	if id, ok := t.keywords[keyword]; ok {
		fn = t.buttons[id].handler()
	} else if cmd, ok := t.commands[keyword]; ok {
		fn = cmd
	} else {
		t.mu.Unlock()
		return false
	}
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Run reads commands until EOF or ctx is done.
func (t *Terminal) Run(ctx context.Context) error {
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	t.println("commands: " + strings.Join(t.Keywords(), ", "))

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errCh:
					return errors.Wrap(err, "read input")
				default:
					return nil
				}
			}
			keyword := strings.ToLower(strings.TrimSpace(line))
			if keyword == "" {
				continue
			}
			if !t.Click(keyword) {
				t.println(fmt.Sprintf("unknown command %q (commands: %s)", keyword, strings.Join(t.Keywords(), ", ")))
			}
		}
	}
}

// Keywords returns the registered keywords in sorted order.
func (t *Terminal) Keywords() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.keywords)+len(t.commands))
	for k := range t.keywords {
		out = append(out, k)
	}
	for k := range t.commands {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t *Terminal) println(line string) {
	t.outMu.Lock()
	defer t.outMu.Unlock()
	fmt.Fprintln(t.out, line)
}

type terminalButton struct {
	mu sync.Mutex
	fn func()
}

func (b *terminalButton) OnClick(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fn = fn
}

func (b *terminalButton) handler() func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fn
}

type terminalDisplay struct {
	id   string
	term *Terminal
}

func (d *terminalDisplay) SetText(text string) {
	d.term.println(d.id + ": " + text)
}
