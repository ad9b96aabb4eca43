package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"signaldesk/internal/dashboard"
	"signaldesk/pkg/signaldesk"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: signaldesk-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                  Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  health                   Check backend health\n")
		fmt.Fprintf(os.Stderr, "  status                   Show backend status\n")
		fmt.Fprintf(os.Stderr, "  summary                  Show the market summary\n")
		fmt.Fprintf(os.Stderr, "  market <venue> [-hot]    Show polymarket or pumpfun data\n")
		fmt.Fprintf(os.Stderr, "  token <id>               Show one pumpfun token\n")
		fmt.Fprintf(os.Stderr, "  signals [-limit N]       List recent signals\n")
		fmt.Fprintf(os.Stderr, "  tweets [-limit N]        List recent tweets\n")
		fmt.Fprintf(os.Stderr, "  chat <message>           Ask the assistant one question\n")
		fmt.Fprintf(os.Stderr, "  clear -session ID        Forget a chat session\n")
		fmt.Fprintf(os.Stderr, "  trigger-update           Ask the backend to refresh its data\n")
		fmt.Fprintf(os.Stderr, "\nThe API root is read from SIGNALDESK_API_URL (default %s).\n\n", signaldesk.DefaultBaseURL)
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	_ = godotenv.Load()
	client := signaldesk.NewClient(os.Getenv("SIGNALDESK_API_URL"))
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "version":
		fmt.Printf("signaldesk-cli %s\n", version)

	case "health":
		var out map[string]any
		if out, err = client.Health(ctx); err == nil {
			printJSON(out)
		}

	case "status":
		var out map[string]any
		if out, err = client.Status(ctx); err == nil {
			printJSON(out)
		}

	case "summary":
		err = runSummary(ctx, client, args)

	case "market":
		err = runMarket(ctx, client, args)

	case "token":
		if len(args) != 1 {
			fatalUsage("token requires an id")
		}
		var out json.RawMessage
		if out, err = client.Token(ctx, args[0]); err == nil {
			printJSON(out)
		}

	case "signals":
		err = runSignals(ctx, client, args)

	case "tweets":
		err = runTweets(ctx, client, args)

	case "chat":
		err = runChat(ctx, client, args)

	case "clear":
		fs := flag.NewFlagSet("clear", flag.ExitOnError)
		session := fs.String("session", "", "session id to forget")
		fs.Parse(args)
		if *session == "" {
			fatalUsage("clear requires -session")
		}
		if err = client.ClearChat(ctx, *session); err == nil {
			fmt.Println("cleared", *session)
		}

	case "trigger-update":
		var out map[string]any
		if out, err = client.TriggerUpdate(ctx); err == nil {
			printJSON(out)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func runSummary(ctx context.Context, client *signaldesk.Client, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	raw := fs.Bool("json", false, "print the raw summary")
	fs.Parse(args)

	summary, err := client.MarketSummary(ctx)
	if err != nil {
		return err
	}
	if *raw {
		printJSON(summary)
		return nil
	}
	pm := summary.Polymarket()
	fmt.Printf("24h volume:        %s\n", pm.Volume24h)
	fmt.Printf("markets tracked:   %s\n", dashboard.FormatInt(pm.MarketsTracked))
	fmt.Printf("significant moves: %s\n", dashboard.FormatInt(pm.SignificantMoves))
	for i, m := range pm.TopMarkets {
		fmt.Printf("%3d. %-60s %s\n", i+1, dashboard.Truncate(m.Question, 60), m.Volume)
	}
	return nil
}

func runMarket(ctx context.Context, client *signaldesk.Client, args []string) error {
	if len(args) < 1 {
		fatalUsage("market requires a venue (polymarket or pumpfun)")
	}
	venue := signaldesk.Venue(strings.ToLower(args[0]))
	if venue != signaldesk.VenuePolymarket && venue != signaldesk.VenuePumpfun {
		fatalUsage(fmt.Sprintf("unknown venue %q", args[0]))
	}
	fs := flag.NewFlagSet("market", flag.ExitOnError)
	hot := fs.Bool("hot", false, "only hot markets")
	fs.Parse(args[1:])

	out, err := client.Venue(ctx, venue, *hot)
	if err != nil {
		return err
	}
	printJSON(out)
	return nil
}

func runSignals(ctx context.Context, client *signaldesk.Client, args []string) error {
	fs := flag.NewFlagSet("signals", flag.ExitOnError)
	limit := fs.Int("limit", 50, "number of signals")
	raw := fs.Bool("json", false, "print raw JSON")
	fs.Parse(args)

	signals, err := client.Signals(ctx, *limit)
	if err != nil {
		return err
	}
	if *raw {
		printJSON(signals)
		return nil
	}
	for _, s := range signals {
		ts, ok := s.Time()
		when := dashboard.FormatDay(ts, ok, time.Local) + " " + dashboard.FormatClock(ts, ok, time.Local)
		if m, ok := s.Multiplier(); ok {
			fmt.Printf("%-14s $%s x%s  MC %s -> %s\n", when, m.Symbol, m.Factor, m.MarketCapFrom, m.MarketCapTo)
			continue
		}
		fmt.Printf("%-14s %s\n", when, dashboard.Truncate(dashboard.FirstLine(s.Text()), 100))
	}
	return nil
}

func runTweets(ctx context.Context, client *signaldesk.Client, args []string) error {
	fs := flag.NewFlagSet("tweets", flag.ExitOnError)
	limit := fs.Int("limit", 20, "number of tweets")
	realOnly := fs.Bool("real", true, "only real tweets")
	user := fs.String("user", "", "filter by username")
	raw := fs.Bool("json", false, "print raw JSON")
	fs.Parse(args)

	tweets, err := client.Tweets(ctx, signaldesk.TweetQuery{Limit: *limit, Real: *realOnly, Username: *user})
	if err != nil {
		return err
	}
	if *raw {
		printJSON(tweets)
		return nil
	}
	for _, t := range tweets {
		ts, ok := t.Time()
		fmt.Printf("%-8s %-90s ♥ %s ↻ %s\n",
			dashboard.FormatDay(ts, ok, time.Local),
			dashboard.Truncate(dashboard.FirstLine(t.Content), 90),
			dashboard.FormatCount(t.Likes),
			dashboard.FormatCount(t.Retweets))
	}
	return nil
}

func runChat(ctx context.Context, client *signaldesk.Client, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	session := fs.String("session", "", "session id (a new one when empty)")
	fs.Parse(args)

	message := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if message == "" {
		fatalUsage("chat requires a message")
	}
	if *session == "" {
		*session = "session_" + uuid.NewString()
		fmt.Fprintf(os.Stderr, "session: %s\n", *session)
	}
	reply, err := client.Chat(ctx, message, *session)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
	}
}

func fatalUsage(msg string) {
	fmt.Fprintf(os.Stderr, "%s\n\n", msg)
	flag.Usage()
	os.Exit(2)
}
