package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"signaldesk/internal/chat"
	"signaldesk/internal/config"
	"signaldesk/internal/dashboard"
	"signaldesk/internal/domain"
	"signaldesk/internal/engine"
	"signaldesk/internal/live"
	"signaldesk/internal/util"
	"signaldesk/pkg/signaldesk"
)

// Styles.
var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	onlineStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	offlineStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	factorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	likesStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	volumeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	paneStyle      = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).PaddingLeft(1)
)

// Messages.
type feedMsg live.Event
type feedClosedMsg struct{}

type chatDoneMsg struct {
	cleared bool
	err     error
}

// waitForEvent blocks on the next model event. Update re-arms it after each
// delivery.
func waitForEvent(events <-chan live.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return feedClosedMsg{}
		}
		return feedMsg(evt)
	}
}

// Model.
type model struct {
	feed    *live.FeedModel
	events  <-chan live.Event
	session *chat.Session
	loc     *time.Location
	logger  *slog.Logger
	cancel  context.CancelFunc

	snap     live.Snapshot
	feedVP   viewport.Model
	chatVP   viewport.Model
	input    textinput.Model
	spin     spinner.Model
	markdown *glamour.TermRenderer
	ready    bool
	sending  bool
	width    int
	height   int
	status   string
}

func initialModel(feed *live.FeedModel, events <-chan live.Event, session *chat.Session, loc *time.Location, cancel context.CancelFunc, logger *slog.Logger) model {
	in := textinput.New()
	in.Placeholder = "Ask about signals, tokens or markets..."
	in.Prompt = "> "
	in.CharLimit = 2000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = assistantStyle

	return model{
		feed:    feed,
		events:  events,
		session: session,
		loc:     loc,
		logger:  logger,
		cancel:  cancel,
		snap:    feed.Snapshot(),
		input:   in,
		spin:    sp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), textinput.Blink)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "tab", "esc":
			if m.input.Focused() {
				m.input.Blur()
				return m, nil
			}
			return m, m.input.Focus()
		case "q":
			// A focused input takes q as text.
			if !m.input.Focused() {
				m.cancel()
				return m, tea.Quit
			}
		case "ctrl+l":
			m.status = "clearing..."
			return m, m.clearCmd()
		case "enter":
			if !m.input.Focused() {
				return m, m.input.Focus()
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if m.sending || m.session.Busy() {
				m.status = "waiting for the previous reply"
				return m, nil
			}
			m.sending = true
			m.input.Reset()
			m.status = ""
			// Spinner ticks redraw the chat pane until the reply lands.
			return m, tea.Batch(m.sendCmd(text), m.spin.Tick)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.feedVP, cmd = m.feedVP.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refreshFeed()
		m.refreshChat()
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.feedVP, cmd = m.feedVP.Update(msg)
		return m, cmd

	case feedMsg:
		m.snap = m.feed.Snapshot()
		m.refreshFeed()
		return m, waitForEvent(m.events)

	case feedClosedMsg:
		m.logger.Warn("feed subscription closed")
		return m, nil

	case chatDoneMsg:
		if !msg.cleared {
			m.sending = false
		}
		switch {
		case msg.cleared && msg.err != nil:
			m.status = "cleared locally; backend did not confirm"
		case msg.cleared:
			m.status = "chat cleared"
		case msg.err != nil:
			m.status = msg.err.Error()
		}
		m.refreshChat()
		return m, nil

	case spinner.TickMsg:
		if !m.sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		m.refreshChat()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) sendCmd(text string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		return chatDoneMsg{err: session.Send(context.Background(), text)}
	}
}

func (m *model) clearCmd() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		return chatDoneMsg{cleared: true, err: session.Clear(context.Background())}
	}
}

// resize splits the body between the feed pane and the chat pane.
func (m *model) resize() {
	bodyHeight := m.height - 3 // header, input, footer
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	feedWidth := m.width * 3 / 5
	chatWidth := m.width - feedWidth - 2

	if !m.ready {
		m.feedVP = viewport.New(feedWidth, bodyHeight)
		m.chatVP = viewport.New(chatWidth, bodyHeight)
		m.ready = true
	} else {
		m.feedVP.Width, m.feedVP.Height = feedWidth, bodyHeight
		m.chatVP.Width, m.chatVP.Height = chatWidth, bodyHeight
	}
	m.input.Width = m.width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(chatWidth-4, 20)),
	)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", "error", err)
		r = nil
	}
	m.markdown = r
}

func (m *model) refreshFeed() {
	if !m.ready {
		return
	}
	m.feedVP.SetContent(renderFeed(m.snap, m.feedVP.Width, m.loc))
}

func (m *model) refreshChat() {
	if !m.ready {
		return
	}
	m.chatVP.SetContent(m.renderChat())
	m.chatVP.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	conn := offlineStyle.Render("● offline")
	if m.snap.Connected {
		conn = onlineStyle.Render("● live")
	}
	headerText := fmt.Sprintf(" signaldesk    signals: %s  tweets: %s    gen %d ",
		dashboard.FormatInt(int64(len(m.snap.Signals))),
		dashboard.FormatInt(int64(len(m.snap.Tweets))),
		m.snap.Generation,
	)
	header := headerStyle.Render(padOrTrunc(headerText, m.width-lipgloss.Width(conn)-1)) + " " + conn

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.feedVP.View(),
		paneStyle.Render(m.chatVP.View()),
	)

	footerLeft := " enter send  ctrl+l clear chat  tab toggle input  q quit  pgup/dn scroll"
	footerRight := fmt.Sprintf("%s %.0f%% ", m.status, m.feedVP.ScrollPercent()*100)
	gap := m.width - lipgloss.Width(footerLeft) - lipgloss.Width(footerRight)
	if gap < 0 {
		gap = 0
	}
	footer := footerStyle.Render(padOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))

	return header + "\n" + body + "\n" + m.input.View() + "\n" + footer
}

func renderFeed(snap live.Snapshot, width int, loc *time.Location) string {
	var b strings.Builder

	b.WriteString(sectionStyle.Render(padOrTrunc(" MARKET SUMMARY", width)))
	b.WriteString("\n")
	if snap.Summary.IsZero() {
		b.WriteString(dimStyle.Render("  no summary yet"))
		b.WriteString("\n")
	} else {
		pm := snap.Summary.Polymarket()
		fmt.Fprintf(&b, "  24h volume %s   tracked %s   significant moves %s\n",
			volumeStyle.Render(orDash(pm.Volume24h)),
			dashboard.FormatCount(pm.MarketsTracked),
			dashboard.FormatCount(pm.SignificantMoves),
		)
		for i, tm := range pm.TopMarkets {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "  %d. %s %s\n", i+1,
				dashboard.Truncate(tm.Question, max(width-20, 10)),
				volumeStyle.Render(tm.Volume))
		}
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(padOrTrunc(" SIGNALS", width)))
	b.WriteString("\n")
	if len(snap.Signals) == 0 {
		b.WriteString(dimStyle.Render("  waiting for signals"))
		b.WriteString("\n")
	}
	for _, s := range snap.Signals {
		ts, ok := s.Time()
		clock := dimStyle.Render(fmt.Sprintf("%8s", dashboard.FormatClock(ts, ok, loc)))
		if mult, ok := s.Multiplier(); ok {
			line := fmt.Sprintf("%s %s", symbolStyle.Render("$"+mult.Symbol), factorStyle.Render("x"+mult.Factor))
			if mult.MarketCapFrom != "" {
				line += dimStyle.Render(fmt.Sprintf("  MC %s -> %s", mult.MarketCapFrom, mult.MarketCapTo))
			}
			fmt.Fprintf(&b, "  %s  %s\n", clock, line)
			continue
		}
		text := dashboard.FirstLine(s.Text())
		if text == "" {
			text = s.Type
		}
		fmt.Fprintf(&b, "  %s  %s\n", clock, dashboard.Truncate(text, max(width-14, 10)))
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(padOrTrunc(" TWEETS", width)))
	b.WriteString("\n")
	if len(snap.Tweets) == 0 {
		b.WriteString(dimStyle.Render("  no tweets yet"))
		b.WriteString("\n")
	}
	for _, t := range snap.Tweets {
		ts, ok := t.Time()
		fmt.Fprintf(&b, "  %s  %s  %s\n",
			dimStyle.Render(fmt.Sprintf("%8s", dashboard.FormatDay(ts, ok, loc))),
			dashboard.Truncate(dashboard.FirstLine(t.Content), max(width-30, 10)),
			likesStyle.Render(fmt.Sprintf("♥ %s ↻ %s", dashboard.FormatCount(t.Likes), dashboard.FormatCount(t.Retweets))),
		)
	}
	return b.String()
}

func (m model) renderChat() string {
	var b strings.Builder
	for _, msg := range m.session.Messages() {
		switch {
		case msg.Role == domain.RoleUser:
			b.WriteString(userStyle.Render("you"))
			b.WriteString("\n")
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		case msg.Error:
			b.WriteString(errorStyle.Render(msg.Content))
			b.WriteString("\n\n")
		default:
			b.WriteString(assistantStyle.Render("assistant"))
			b.WriteString("\n")
			b.WriteString(m.renderMarkdown(msg.Content))
			b.WriteString("\n")
		}
	}
	if m.sending {
		b.WriteString(m.spin.View())
		b.WriteString(dimStyle.Render(" thinking..."))
	}
	return b.String()
}

func (m model) renderMarkdown(s string) string {
	if m.markdown == nil {
		return s + "\n"
	}
	out, err := m.markdown.Render(s)
	if err != nil {
		return s + "\n"
	}
	return strings.TrimLeft(out, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// padOrTrunc pads s with spaces or truncates it to exactly width display cells.
func padOrTrunc(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := lipgloss.Width(s)
	if w > width {
		return dashboard.Truncate(s, width)
	}
	return s + strings.Repeat(" ", width-w)
}

func main() {
	cfgPath := flag.String("config", "config/signaldesk.yaml", "path to the YAML config")
	flag.Parse()

	if p := os.Getenv("SIGNALDESK_CONFIG"); p != "" {
		*cfgPath = p
	}
	_ = godotenv.Load()

	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logPath := fmt.Sprintf("/tmp/signaldesk-console-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := util.NewLoggerTo(logFile, cfg.Logging.Level, "text")
	util.SetDefault(logger)

	api := signaldesk.NewClientWithHTTP(cfg.Backend.APIURL, &http.Client{Timeout: cfg.Backend.Timeout})
	feed := live.NewFeedModel(cfg.Feeds.SignalCapacity, cfg.Feeds.TweetCapacity)
	channel := live.NewClient(cfg.Backend.WSURL, feed, live.ClientOptions{
		Backoff:          cfg.Channel.Backoff(),
		HandshakeTimeout: cfg.Channel.HandshakeTimeout,
		PingInterval:     cfg.Channel.PingInterval,
	}, logger)
	eng := engine.New(api, feed, channel, engine.Options{
		BootstrapSignals: cfg.Feeds.BootstrapSignals,
		BootstrapTweets:  cfg.Feeds.BootstrapTweets,
		RefreshInterval:  cfg.Feeds.RefreshInterval,
	}, logger)
	session := chat.NewSession(api, chat.Options{RotateOnClear: cfg.Chat.RotateSessionOnClear}, logger)

	subID, events := feed.Subscribe(256)
	defer feed.Unsubscribe(subID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := eng.Run(ctx); err != nil {
			logger.Error("engine stopped", "error", err)
		}
	}()

	p := tea.NewProgram(
		initialModel(feed, events, session, time.Local, cancel, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cancel()
	<-engineDone
}
