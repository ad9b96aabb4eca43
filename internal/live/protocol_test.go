package live

import (
	"encoding/json"
	"testing"
)

func TestSubscribeFrameJSON(t *testing.T) {
	b, err := json.Marshal(Subscribe("signals"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"type":"subscribe","channel":"signals"}`; got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  []PushKind
	}{
		{"signal", `{"channel":"signals","type":"signal","data":{"type":"whale"}}`, []PushKind{PushSignal}},
		{"summary", `{"channel":"signals","type":"summary","data":{"polymarket":{}}}`, []PushKind{PushSummary}},
		{"tweet", `{"channel":"tweets","data":{"tweetId":"1"}}`, []PushKind{PushTweet}},
		{"tweet with type", `{"channel":"tweets","type":"tweet","data":{"tweetId":"1"}}`, []PushKind{PushTweet}},
		{"tweets update", `{"type":"tweets_update","tweets":[{"tweetId":"1"},{"tweetId":"2"}]}`, []PushKind{PushTweetsReplace}},
		{"tweets update on tweets channel", `{"channel":"tweets","type":"tweets_update","tweets":[]}`, []PushKind{PushTweetsReplace}},
		{"both routes", `{"channel":"tweets","type":"tweets_update","data":{"tweetId":"9"},"tweets":[]}`, []PushKind{PushTweet, PushTweetsReplace}},
		{"unknown signal type", `{"channel":"signals","type":"heartbeat"}`, nil},
		{"unknown channel", `{"channel":"prices","type":"signal","data":{}}`, nil},
		{"no channel", `{"type":"pong"}`, nil},
		{"tweets update without list", `{"type":"tweets_update"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pushes, err := ParseFrame([]byte(tt.frame))
			if err != nil {
				t.Fatalf("ParseFrame: %v", err)
			}
			if len(pushes) != len(tt.want) {
				t.Fatalf("got %d pushes, want %d", len(pushes), len(tt.want))
			}
			for i, p := range pushes {
				if p.Kind != tt.want[i] {
					t.Errorf("push %d kind = %s, want %s", i, p.Kind, tt.want[i])
				}
			}
		})
	}
}

func TestParseFrameDecodesPayload(t *testing.T) {
	pushes, err := ParseFrame([]byte(`{"type":"tweets_update","tweets":[{"tweetId":"a"},{"id":"b"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	tweets := pushes[0].Tweets
	if len(tweets) != 2 || tweets[0].ID != "a" || tweets[1].ID != "b" {
		t.Errorf("tweets = %+v", tweets)
	}

	pushes, err = ParseFrame([]byte(`{"channel":"signals","type":"signal","data":{"type":"gem_tools_multiplier","message":"$ABC x3"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if pushes[0].Signal.Type != "gem_tools_multiplier" {
		t.Errorf("signal type = %q", pushes[0].Signal.Type)
	}
}

func TestParseFrameErrors(t *testing.T) {
	frames := map[string]string{
		"not json":        `{"channel":`,
		"not an object":   `[1,2]`,
		"signal no data":  `{"channel":"signals","type":"signal"}`,
		"signal bad data": `{"channel":"signals","type":"signal","data":"oops"}`,
		"summary no data": `{"channel":"signals","type":"summary","data":null}`,
		"tweet no data":   `{"channel":"tweets"}`,
		"tweets not list": `{"type":"tweets_update","tweets":{"a":1}}`,
	}
	for name, frame := range frames {
		if _, err := ParseFrame([]byte(frame)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestPushKindString(t *testing.T) {
	if got := PushTweetsReplace.String(); got != "tweets_replace" {
		t.Errorf("String() = %q", got)
	}
	if got := PushKind(42).String(); got != "PushKind(42)" {
		t.Errorf("String() = %q", got)
	}
}
