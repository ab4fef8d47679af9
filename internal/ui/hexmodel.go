package ui

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"hexit/internal/buffer"
	"hexit/internal/hexutil"
	"hexit/internal/scroll"
)

// Mode selects which column typed keys edit.
type Mode int

const (
	ModeHex Mode = iota
	ModeASCII
)

// Letter is the status bar marker for the mode.
func (m Mode) Letter() byte {
	if m == ModeASCII {
		return 'A'
	}
	return 'X'
}

type promptKind int

const (
	promptNone promptKind = iota
	promptSave
	promptQuit
	promptGoTo
)

const (
	// a 64-bit offset has at most 20 decimal digits
	maxGoToDigits = 20
	// header, status bar and key hints
	chromeLines = 3
)

// CloseMsg asks the parent to close this view. It is sent once the user
// has confirmed that unsaved edits may be dropped.
type CloseMsg struct{}

func closeCmd() tea.Msg { return CloseMsg{} }

// HexModel is the byte-dump view of one buffer: offset column, hex pairs
// and an ASCII column, with a cursor that edits either of the two.
type HexModel struct {
	buf         *buffer.ByteBuffer[uint64]
	scroller    *scroll.Scroller
	perLine     uint64
	fileType    string
	offsetWidth int

	byteID uint64
	nibble int // 0 is the high nibble
	mode   Mode
	prompt promptKind
	input  textinput.Model

	keys     KeyMap
	help     help.Model
	showHelp bool

	width     int
	height    int
	status    string
	statusErr bool
}

// NewHexModel opens a view on buf with the cursor at start, clamped to the
// last byte.
func NewHexModel(buf *buffer.ByteBuffer[uint64], fileType string, bytesPerLine int, start uint64) HexModel {
	bytesPerLine = max(bytesPerLine, 1)

	ti := textinput.New()
	ti.Prompt = "Goto byte: "
	ti.CharLimit = maxGoToDigits

	m := HexModel{
		buf:         buf,
		scroller:    scroll.New(buf.Size(), uint64(bytesPerLine)),
		perLine:     uint64(bytesPerLine),
		fileType:    fileType,
		offsetWidth: offsetWidth(buf.Size()),
		input:       ti,
		keys:        DefaultKeyMap(),
		help:        help.New(),
	}
	m.byteID = m.clamp(start)
	return m
}

func offsetWidth(size uint64) int {
	return max(len(fmt.Sprintf("%X", max(size, 1)-1)), 8)
}

func (m HexModel) Name() string     { return m.buf.Name() }
func (m HexModel) Dirty() bool      { return m.buf.HasDirty() }
func (m HexModel) ReadOnly() bool   { return m.buf.ReadOnly() }
func (m HexModel) Offset() uint64   { return m.byteID }
func (m HexModel) Mode() Mode       { return m.mode }
func (m HexModel) FileType() string { return m.fileType }

// Prompting reports whether a prompt owns the keyboard.
func (m HexModel) Prompting() bool { return m.prompt != promptNone }

// SetSize fits the view to width x height cells.
func (m *HexModel) SetSize(width, height int) {
	m.width, m.height = width, height
	m.help.Width = width
	m.resync()
}

func (m HexModel) visibleLines() int {
	return max(m.height-chromeLines, 1)
}

func (m *HexModel) resync() {
	m.scroller.AdjustLines(uint64(m.visibleLines()), m.byteID/m.perLine)
}

func (m HexModel) size() uint64 { return m.buf.Size() }

func (m HexModel) clamp(id uint64) uint64 {
	if m.size() == 0 {
		return 0
	}
	return min(id, m.size()-1)
}

// lineBytes is the number of real bytes on line; only the final line can
// be short.
func (m HexModel) lineBytes(line uint64) uint64 {
	if line == m.scroller.Total()-1 && m.size()%m.perLine != 0 {
		return m.size() % m.perLine
	}
	return m.perLine
}

func (m HexModel) Init() tea.Cmd { return nil }

func (m HexModel) Update(msg tea.Msg) (HexModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		return m.updateView(msg)
	}
	return m, nil
}

// RequestClose closes the view straight away when nothing would be lost,
// otherwise it asks first.
func (m HexModel) RequestClose() (HexModel, tea.Cmd) {
	if m.prompt != promptNone {
		m.closePrompt()
	}
	if !m.buf.HasDirty() || m.buf.ReadOnly() {
		return m, closeCmd
	}
	m.prompt = promptQuit
	return m, nil
}

func (m HexModel) updateView(msg tea.KeyMsg) (HexModel, tea.Cmd) {
	m.status, m.statusErr = "", false

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.RequestClose()
	case key.Matches(msg, m.keys.Suspend):
		return m, tea.Suspend
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
	case m.size() == 0:
		// nothing below applies to an empty buffer
	case key.Matches(msg, m.keys.Up):
		m.moveUp()
	case key.Matches(msg, m.keys.Down):
		m.moveDown()
	case key.Matches(msg, m.keys.Left):
		m.moveLeft()
	case key.Matches(msg, m.keys.Right):
		m.moveRight()
	case key.Matches(msg, m.keys.PageUp):
		m.pageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.pageDown()
	case key.Matches(msg, m.keys.LineStart):
		m.byteID -= m.byteID % m.perLine
		m.nibble = 0
	case key.Matches(msg, m.keys.LineEnd):
		line := m.byteID / m.perLine
		m.byteID = line*m.perLine + m.lineBytes(line) - 1
		m.nibble = 0
	case key.Matches(msg, m.keys.HexMode):
		m.mode = ModeHex
	case key.Matches(msg, m.keys.ASCIIMode):
		m.mode = ModeASCII
		m.nibble = 0
	case key.Matches(msg, m.keys.GoTo):
		m.prompt = promptGoTo
		m.input.Reset()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Save):
		if m.buf.HasDirty() && !m.buf.ReadOnly() {
			m.prompt = promptSave
		}
	case msg.Type == tea.KeySpace:
		m.edit(' ')
	case msg.Type == tea.KeyRunes && len(msg.Runes) == 1:
		m.edit(msg.Runes[0])
	}
	return m, nil
}

func (m *HexModel) moveUp() {
	if m.byteID < m.perLine {
		return
	}
	m.byteID -= m.perLine
	m.scroller.MoveUp()
}

func (m *HexModel) moveDown() {
	if m.byteID/m.perLine+1 >= m.scroller.Total() {
		return
	}
	m.byteID = min(m.byteID+m.perLine, m.size()-1)
	m.scroller.MoveDown()
}

func (m *HexModel) moveLeft() {
	col := m.byteID % m.perLine
	if m.mode == ModeHex {
		if m.nibble == 1 {
			m.nibble = 0
		} else if col > 0 {
			m.byteID--
			m.nibble = 1
		}
		return
	}
	if col > 0 {
		m.byteID--
	}
}

func (m *HexModel) moveRight() {
	col := m.byteID % m.perLine
	atEnd := col+1 >= m.lineBytes(m.byteID/m.perLine)
	if m.mode == ModeHex {
		if m.nibble == 0 {
			m.nibble = 1
		} else if !atEnd {
			m.byteID++
			m.nibble = 0
		}
		return
	}
	if !atEnd {
		m.byteID++
	}
}

func (m *HexModel) pageUp() {
	step := m.perLine * m.scroller.Visible()
	if m.byteID >= step {
		m.byteID -= step
	} else {
		m.byteID = 0
	}
	m.resync()
}

func (m *HexModel) pageDown() {
	step := m.perLine * m.scroller.Visible()
	if m.size()-m.byteID > step {
		m.byteID += step
	} else {
		m.byteID = m.size() - 1
	}
	m.resync()
}

// edit applies a typed character to the byte under the cursor. The cursor
// stays where it is.
func (m *HexModel) edit(r rune) {
	if r > 0x7F {
		return
	}
	c := byte(r)
	var v byte
	switch {
	case m.mode == ModeASCII && hexutil.IsPrint(c):
		v = c
	case m.mode == ModeHex && hexutil.IsHexDigit(c):
		old, err := m.buf.ByteAt(m.byteID)
		if err != nil {
			m.setError("Read failed", err)
			return
		}
		v = hexutil.UpdateNibble(m.nibble, c, old)
	default:
		return
	}
	m.buf.SetByte(m.byteID, v)
}

func (m HexModel) updatePrompt(msg tea.KeyMsg) (HexModel, tea.Cmd) {
	if msg.Type == tea.KeyEsc || key.Matches(msg, m.keys.Quit) {
		m.closePrompt()
		return m, nil
	}

	if m.prompt == promptGoTo {
		switch msg.Type {
		case tea.KeyEnter:
			m.confirmGoTo()
			return m, nil
		case tea.KeyRunes:
			for _, r := range msg.Runes {
				if !m.acceptsDigit(r) {
					return m, nil
				}
			}
		case tea.KeyBackspace, tea.KeyDelete, tea.KeyLeft, tea.KeyRight:
		default:
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "y", "Y":
		kind := m.prompt
		m.closePrompt()
		if kind == promptQuit {
			return m, closeCmd
		}
		m.save()
	case "n", "N":
		m.closePrompt()
	}
	return m, nil
}

func (m HexModel) acceptsDigit(r rune) bool {
	if r > 0x7F {
		return false
	}
	if m.mode == ModeASCII {
		return hexutil.IsDecDigit(byte(r))
	}
	return hexutil.IsHexDigit(byte(r))
}

func (m *HexModel) confirmGoTo() {
	if s := m.input.Value(); s != "" {
		parse := hexutil.ParseHex
		if m.mode == ModeASCII {
			parse = hexutil.ParseDec
		}
		target, err := parse(s)
		if err != nil {
			m.setError("Bad offset "+s, err)
		} else {
			m.byteID = m.clamp(target)
			m.nibble = 0
		}
	}
	m.closePrompt()
	m.resync()
}

func (m *HexModel) closePrompt() {
	m.prompt = promptNone
	m.input.Blur()
	m.input.Reset()
}

func (m *HexModel) save() {
	if err := m.buf.Save(); err != nil {
		log.Printf("[HexModel] save %s failed: %v", m.buf.Name(), err)
		var saveErr *buffer.SaveError
		if errors.As(err, &saveErr) {
			m.setError(fmt.Sprintf("Save stopped at chunk %d", saveErr.Chunk), saveErr.Err)
			return
		}
		m.setError("Save failed", err)
		return
	}
	log.Printf("[HexModel] saved %s", m.buf.Name())
	m.status = "Saved"
}

func (m *HexModel) setError(what string, err error) {
	m.status = what + ": " + err.Error()
	m.statusErr = true
}

func (m HexModel) percentage() uint64 {
	if m.scroller.Total() == 0 {
		return 100
	}
	return (m.scroller.Last() + 1) * 100 / m.scroller.Total()
}

func (m HexModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return RenderHelp(m.width, m.height, m.help, m.keys)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderBody(),
		m.renderStatusBar(),
		m.help.ShortHelpView(m.keys.ShortHelp()),
	)
}

func (m HexModel) renderHeader() string {
	title := m.buf.Name()
	if m.buf.HasDirty() {
		title = "*" + title
	}
	title = ansi.Truncate(title, max(m.width-2, 1), "…")
	return headerStyle.Width(m.width).Align(lipgloss.Center).Render(title)
}

func (m HexModel) renderBody() string {
	rows := make([]string, 0, m.visibleLines())
	if m.size() > 0 {
		for line := m.scroller.First(); line <= m.scroller.Last(); line++ {
			rows = append(rows, m.renderLine(line))
		}
	} else {
		rows = append(rows, offsetStyle.Render("(empty)"))
	}
	for len(rows) < m.visibleLines() {
		rows = append(rows, "")
	}
	return strings.Join(rows, "\n")
}

func (m HexModel) renderLine(line uint64) string {
	base := line * m.perLine
	n := m.lineBytes(line)

	var hex, text strings.Builder
	hex.WriteString(offsetStyle.Render(fmt.Sprintf("%0*X", m.offsetWidth, base)))
	hex.WriteString("  ")

	for i := uint64(0); i < m.perLine; i++ {
		if i >= n {
			hex.WriteString("   ")
			text.WriteByte(' ')
			continue
		}
		id := base + i
		b, err := m.buf.ByteAt(id)
		if err != nil {
			hex.WriteString(unreadableStyle.Render("??") + " ")
			text.WriteString(unreadableStyle.Render("?"))
			continue
		}

		pair := fmt.Sprintf("%02X", b)
		ch := "."
		if hexutil.IsPrint(b) {
			ch = string(rune(b))
		}
		switch {
		case id == m.byteID && m.mode == ModeHex:
			if m.nibble == 0 {
				hex.WriteString(cursorStyle.Render(pair[:1]) + pair[1:])
			} else {
				hex.WriteString(pair[:1] + cursorStyle.Render(pair[1:]))
			}
			text.WriteString(cursorStyle.Render(ch))
		case id == m.byteID:
			hex.WriteString(cursorStyle.Render(pair))
			text.WriteString(cursorStyle.Render(ch))
		case m.buf.IsDirty(id):
			hex.WriteString(dirtyStyle.Render(pair))
			text.WriteString(dirtyStyle.Render(ch))
		default:
			hex.WriteString(pair)
			text.WriteString(ch)
		}
		hex.WriteByte(' ')
	}
	return hex.String() + " " + text.String()
}

func (m HexModel) renderStatusBar() string {
	style := statusStyle
	var left string
	switch m.prompt {
	case promptSave:
		left = " Modified buffer, save? (y/n)"
	case promptQuit:
		left = " Modified buffer, quit? (y/n)"
	case promptGoTo:
		left = " " + m.input.View()
	default:
		left = fmt.Sprintf(" %0*X", m.offsetWidth, m.byteID)
		if m.status != "" {
			msg := m.status
			if m.statusErr {
				msg = errorStyle.Render(msg)
			}
			left += " │ " + msg
		}
	}
	if m.prompt != promptNone {
		style = promptBarStyle
	}

	right := fmt.Sprintf("%s/%s/%d%% ", m.fileType, modeStyle.Render(string(m.mode.Letter())), m.percentage())
	if m.buf.ReadOnly() {
		right = "[read-only] " + right
	}
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return style.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
