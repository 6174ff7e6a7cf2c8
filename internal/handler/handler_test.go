package handler

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"deafbot/config"
	"deafbot/internal/callback"
	"deafbot/internal/dialogue"
	"deafbot/internal/domain"
	"deafbot/internal/geocoder"
	"deafbot/internal/keyboard"
	"deafbot/internal/transport"
	"deafbot/traits/database"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const adminID = 999

type sentMessage struct {
	Ref    transport.MessageRef
	Text   string
	Opts   transport.SendOptions
	Photos []string
}

type editedMessage struct {
	Ref    transport.MessageRef
	Text   string
	Markup models.ReplyMarkup
}

type fakeTransport struct {
	mu        sync.Mutex
	nextID    int
	sent      []sentMessage
	edits     []editedMessage
	markups   []editedMessage
	deleted   []transport.MessageRef
	answered  []string
	documents []string
}

func (f *fakeTransport) newRef(chatID int64) transport.MessageRef {
	f.nextID++
	return transport.MessageRef{ChatID: chatID, MessageID: 10000 + f.nextID}
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string, opts transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := f.newRef(chatID)
	f.sent = append(f.sent, sentMessage{Ref: ref, Text: text, Opts: opts})
	return ref, nil
}

func (f *fakeTransport) SendMediaGroup(_ context.Context, chatID int64, photos []string, caption string) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := f.newRef(chatID)
	f.sent = append(f.sent, sentMessage{Ref: ref, Text: caption, Photos: photos})
	return ref, nil
}

func (f *fakeTransport) EditText(_ context.Context, ref transport.MessageRef, text string, opts transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editedMessage{Ref: ref, Text: text, Markup: opts.Markup})
	return nil
}

func (f *fakeTransport) EditReplyMarkup(_ context.Context, ref transport.MessageRef, markup models.ReplyMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markups = append(f.markups, editedMessage{Ref: ref, Markup: markup})
	return nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, ref transport.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeTransport) AnswerCallback(_ context.Context, callbackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, callbackID)
	return nil
}

func (f *fakeTransport) SendDocument(_ context.Context, _ int64, filename string, data io.Reader, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := io.Copy(io.Discard, data); err != nil {
		return err
	}
	f.documents = append(f.documents, filename)
	return nil
}

// sentTo returns the messages delivered to chatID, in order.
func (f *fakeTransport) sentTo(chatID int64) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.Ref.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) lastTo(t *testing.T, chatID int64) sentMessage {
	t.Helper()
	msgs := f.sentTo(chatID)
	if len(msgs) == 0 {
		t.Fatalf("nothing sent to %d", chatID)
	}
	return msgs[len(msgs)-1]
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent, f.edits, f.markups, f.deleted, f.answered = nil, nil, nil, nil, nil
}

type fakeGeocoder struct{}

func (fakeGeocoder) Resolve(_ context.Context, input string) (domain.Location, error) {
	switch strings.ToLower(input) {
	case "berlin", "берлин":
		return domain.Location{Displayed: input, Actual: "Berlin"}, nil
	case "timeout":
		return domain.Location{}, fmt.Errorf("geocoder request: context deadline exceeded")
	}
	return domain.Location{}, &geocoder.CityNotFoundError{Name: input}
}

func (fakeGeocoder) ResolvePoint(_ context.Context, lat, lon float64) (domain.Location, error) {
	return domain.Location{
		Displayed:   "Berlin",
		Actual:      "Berlin",
		Coordinates: &domain.Coordinates{Latitude: lat, Longitude: lon},
	}, nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeTransport) {
	t.Helper()
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := database.CreateTables(db); err != nil {
		t.Fatalf("create tables: %v", err)
	}

	cfg := &config.Config{Port: "0", AdminID: adminID, NotifyRate: 1000}
	h := NewHandler(zap.NewNop(), cfg, context.Background(), db, fakeGeocoder{}, nil)
	tr := &fakeTransport{}
	h.SetTransport(tr)
	return h, tr
}

var messageIDs int64

func userEvent(id int64, kind EventKind) Event {
	return Event{
		Kind:      kind,
		UserID:    domain.UserID(id),
		ChatID:    id,
		Private:   true,
		Username:  fmt.Sprintf("user%d", id),
		FirstName: fmt.Sprintf("User %d", id),
		Message:   transport.MessageRef{ChatID: id, MessageID: int(atomic.AddInt64(&messageIDs, 1))},
	}
}

func textEvent(id int64, text string) Event {
	ev := userEvent(id, EventText)
	ev.Text = text
	return ev
}

func commandEvent(id int64, cmd, args string) Event {
	ev := userEvent(id, EventCommand)
	ev.Command, ev.Args = cmd, args
	return ev
}

func photoEvent(id int64, photo string) Event {
	ev := userEvent(id, EventPhoto)
	ev.PhotoID = domain.PhotoID(photo)
	return ev
}

func buttonEvent(id int64, data string, msg transport.MessageRef) Event {
	ev := userEvent(id, EventButton)
	ev.Message = transport.MessageRef{}
	ev.CallbackID = fmt.Sprintf("cb-%d", atomic.AddInt64(&messageIDs, 1))
	ev.CallbackData = data
	ev.CallbackMessage = msg
	return ev
}

func createProfile(t *testing.T, h *Handler, id int64, name string, sex domain.Sex, want string) {
	t.Helper()
	ctx := context.Background()
	sexText := domain.SexMaleText
	if sex == domain.Female {
		sexText = domain.SexFemaleText
	}
	steps := []Event{
		commandEvent(id, "start", ""),
		textEvent(id, name),
		textEvent(id, "25"),
		textEvent(id, "Berlin"),
		textEvent(id, sexText),
		textEvent(id, want),
		textEvent(id, domain.Hearing.Label(sex)),
		textEvent(id, domain.LeaveEmptyText),
		photoEvent(id, fmt.Sprintf("photo-%d", id)),
	}
	for _, ev := range steps {
		h.HandleEvent(ctx, ev)
	}
	ok, err := h.profileRepo.HasProfile(ctx, domain.UserID(id))
	if err != nil || !ok {
		t.Fatalf("profile %d not created: %v", id, err)
	}
}

func TestWizardCreatesProfile(t *testing.T) {
	h, tr := newTestHandler(t)
	createProfile(t, h, 1, "Anna", domain.Female, domain.WantMaleText)

	p, err := h.profileRepo.GetProfile(context.Background(), 1)
	if err != nil || p == nil {
		t.Fatalf("profile = %v, %v", p, err)
	}
	if p.Name != "Anna" || p.Age != 25 || p.Sex != domain.Female || p.HearingLevel != domain.Hearing {
		t.Fatalf("profile = %+v", p)
	}
	if p.Description != nil {
		t.Fatalf("description = %q, want none", *p.Description)
	}
	if p.Settings.SearchOptions.Sex == nil || *p.Settings.SearchOptions.Sex != domain.Male {
		t.Fatalf("search sex = %v, want Male", p.Settings.SearchOptions.Sex)
	}

	msgs := tr.sentTo(1)
	if len(msgs) < 2 {
		t.Fatalf("sent %d messages", len(msgs))
	}
	ready, album := msgs[len(msgs)-2], msgs[len(msgs)-1]
	if ready.Text != textProfileReady {
		t.Fatalf("ready message = %q", ready.Text)
	}
	if len(album.Photos) != 1 || album.Photos[0] != "photo-1" || album.Text != p.Caption() {
		t.Fatalf("profile album = %+v", album)
	}
	if _, idle := h.states.Get(1).(dialogue.Idle); !idle {
		t.Fatalf("state = %s, want Idle", h.states.Get(1).Name())
	}
	if u, _ := h.userRepo.GetUser(context.Background(), 1); u == nil || u.Username != "user1" {
		t.Fatalf("user record = %+v", u)
	}
}

func TestWizardInputForms(t *testing.T) {
	tests := []struct {
		name     string
		age      string
		hearing  string
		desc     string
		wantAge  int
		wantDesc *string
	}{
		{"tokens", "29", "Hearing", domain.LeaveEmptyToken, 29, nil},
		{"labels", "31", domain.Hearing.Label(domain.Female), domain.LeaveEmptyText, 31, nil},
		{"description", "40", "Hearing", "Люблю горы", 40, optional("Люблю горы")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			ctx := context.Background()
			for _, ev := range []Event{
				commandEvent(1, "start", ""),
				textEvent(1, "Anna"),
				textEvent(1, tt.age),
				textEvent(1, "Berlin"),
				textEvent(1, domain.SexFemaleText),
				textEvent(1, domain.WantMaleText),
				textEvent(1, tt.hearing),
				textEvent(1, tt.desc),
				photoEvent(1, "photo-id"),
			} {
				h.HandleEvent(ctx, ev)
			}

			p, err := h.profileRepo.GetProfile(ctx, 1)
			if err != nil || p == nil {
				t.Fatalf("profile = %v, %v", p, err)
			}
			if p.Name != "Anna" || p.Age != tt.wantAge || p.Location.Actual != "Berlin" {
				t.Fatalf("profile = %+v", p)
			}
			if p.Sex != domain.Female || p.HearingLevel != domain.Hearing {
				t.Fatalf("sex = %s, hearing = %s", p.Sex, p.HearingLevel)
			}
			if (p.Description == nil) != (tt.wantDesc == nil) || (p.Description != nil && *p.Description != *tt.wantDesc) {
				t.Fatalf("description = %v, want %v", p.Description, tt.wantDesc)
			}
			if len(p.Photos) != 1 || p.Photos[0] != "photo-id" {
				t.Fatalf("photos = %v", p.Photos)
			}
		})
	}
}

func TestWizardNameLengthBoundary(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()

	h.HandleEvent(ctx, commandEvent(1, "start", ""))
	h.HandleEvent(ctx, textEvent(1, strings.Repeat("я", 26)))

	last := tr.lastTo(t, 1)
	if !strings.Contains(last.Text, "26/<b>25</b>") || !last.Opts.HTML {
		t.Fatalf("rejection = %+v", last)
	}
	if st := h.states.Get(1).(dialogue.CreatingProfile); st.Step != domain.StepName {
		t.Fatalf("step = %s, want Name", st.Step)
	}

	h.HandleEvent(ctx, textEvent(1, strings.Repeat("я", 25)))
	if st := h.states.Get(1).(dialogue.CreatingProfile); st.Step != domain.StepAge {
		t.Fatalf("step = %s, want Age", st.Step)
	}
	if last := tr.lastTo(t, 1); last.Text != textAskAge {
		t.Fatalf("prompt = %q", last.Text)
	}
}

func TestWizardRejectsBadAge(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()

	h.HandleEvent(ctx, commandEvent(1, "start", ""))
	h.HandleEvent(ctx, textEvent(1, "Anna"))
	for _, bad := range []string{"двадцать", "-3"} {
		h.HandleEvent(ctx, textEvent(1, bad))
		if last := tr.lastTo(t, 1); last.Text != textAgeNotNumber {
			t.Fatalf("%q: reply = %q", bad, last.Text)
		}
	}
	if st := h.states.Get(1).(dialogue.CreatingProfile); st.Step != domain.StepAge {
		t.Fatalf("step = %s, want Age", st.Step)
	}
}

func TestWizardCityNotFound(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()

	h.HandleEvent(ctx, commandEvent(1, "start", ""))
	h.HandleEvent(ctx, textEvent(1, "Anna"))
	h.HandleEvent(ctx, textEvent(1, "25"))
	h.HandleEvent(ctx, textEvent(1, "Xyzzyplex"))

	last := tr.lastTo(t, 1)
	if last.Text != cityNotFoundText("Xyzzyplex") {
		t.Fatalf("reply = %q", last.Text)
	}
	if st := h.states.Get(1).(dialogue.CreatingProfile); st.Step != domain.StepLocation {
		t.Fatalf("step = %s, want Location", st.Step)
	}

	h.HandleEvent(ctx, textEvent(1, "timeout"))
	if last := tr.lastTo(t, 1); last.Text != textGeocoderFailed {
		t.Fatalf("transient failure reply = %q", last.Text)
	}

	loc := userEvent(1, EventLocation)
	loc.Location = &domain.Coordinates{Latitude: 52.52, Longitude: 13.405}
	h.HandleEvent(ctx, loc)
	if st := h.states.Get(1).(dialogue.CreatingProfile); st.Step != domain.StepSex {
		t.Fatalf("step = %s, want Sex", st.Step)
	}
}

func TestEventsWithoutProfileAreDropped(t *testing.T) {
	h, tr := newTestHandler(t)
	h.HandleEvent(context.Background(), textEvent(1, keyboard.SearchButton))
	if msgs := tr.sentTo(1); len(msgs) != 0 {
		t.Fatalf("sent %+v to user without profile", msgs)
	}
}

func TestPreconditions(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()

	group := commandEvent(1, "start", "")
	group.Private = false
	h.HandleEvent(ctx, group)
	if last := tr.lastTo(t, 1); last.Text != textPrivateOnly {
		t.Fatalf("group reply = %q", last.Text)
	}

	anonymous := commandEvent(2, "start", "")
	anonymous.Username = ""
	h.HandleEvent(ctx, anonymous)
	if last := tr.lastTo(t, 2); last.Text != textUsernameNeeded || !last.Opts.HTML {
		t.Fatalf("username reply = %+v", last)
	}
	if _, idle := h.states.Get(2).(dialogue.Idle); !idle {
		t.Fatalf("wizard started without username")
	}
}

func TestMutualLikeIntroducesBothSides(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()
	createProfile(t, h, 1, "Ivan", domain.Male, domain.WantFemaleText)
	createProfile(t, h, 2, "Anna", domain.Female, domain.WantMaleText)
	tr.reset()

	h.HandleEvent(ctx, textEvent(1, keyboard.SearchButton))
	if st, ok := h.states.Get(1).(dialogue.Browsing); !ok || st.Data.Candidate != 2 {
		t.Fatalf("state = %+v", h.states.Get(1))
	}
	h.HandleEvent(ctx, textEvent(1, keyboard.LikeButton))
	h.Wait()

	if last := tr.lastTo(t, 2); last.Text != textSomeoneLiked {
		t.Fatalf("like notification = %q", last.Text)
	}
	if last := tr.lastTo(t, 1); last.Text != textNoSuggestion {
		t.Fatalf("after last candidate = %q", last.Text)
	}
	if _, idle := h.states.Get(1).(dialogue.Idle); !idle {
		t.Fatalf("viewer not back to Idle")
	}

	tr.reset()
	h.HandleEvent(ctx, textEvent(2, keyboard.SearchButton))
	h.HandleEvent(ctx, textEvent(2, keyboard.LikeButton))

	var viewerTexts []string
	for _, m := range tr.sentTo(2) {
		viewerTexts = append(viewerTexts, m.Text)
	}
	joined := strings.Join(viewerTexts, "\n")
	if !strings.Contains(joined, textMutualLike) || !strings.Contains(joined, `href="t.me/user1"`) {
		t.Fatalf("viewer messages = %q", viewerTexts)
	}

	partner := tr.sentTo(1)
	if len(partner) != 3 {
		t.Fatalf("partner got %d messages: %+v", len(partner), partner)
	}
	if partner[0].Text != textMutualLike || len(partner[1].Photos) != 1 || partner[1].Photos[0] != "photo-2" {
		t.Fatalf("partner messages = %+v", partner)
	}
	if !strings.HasPrefix(partner[2].Text, "🥳") || !strings.Contains(partner[2].Text, `href="t.me/user2"`) || !partner[2].Opts.NoPreview {
		t.Fatalf("partner introduction = %+v", partner[2])
	}

	n, err := h.likeRepo.CountLikesBetween(ctx, 1, 2)
	if err != nil || n != 0 {
		t.Fatalf("likes between = %d, %v", n, err)
	}
}

func TestLikesQueueAndStaleOffer(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()
	createProfile(t, h, 1, "Ivan", domain.Male, domain.WantFemaleText)
	createProfile(t, h, 2, "Anna", domain.Female, domain.WantMaleText)

	h.HandleEvent(ctx, textEvent(2, keyboard.LikesButton))
	if last := tr.lastTo(t, 2); last.Text != textNoLikes {
		t.Fatalf("empty queue reply = %q", last.Text)
	}

	h.HandleEvent(ctx, textEvent(1, keyboard.SearchButton))
	h.HandleEvent(ctx, textEvent(1, keyboard.LikeButton))
	h.Wait()

	h.HandleEvent(ctx, textEvent(2, keyboard.LikesButton))
	if st, ok := h.states.Get(2).(dialogue.BrowsingLikes); !ok || st.Data.Candidate != 1 {
		t.Fatalf("state = %+v", h.states.Get(2))
	}

	// The like disappears while the offer is on screen.
	if _, err := h.likeRepo.DeleteLike(ctx, 1, 2); err != nil {
		t.Fatalf("delete like: %v", err)
	}
	tr.reset()
	h.HandleEvent(ctx, textEvent(2, keyboard.LikeButton))

	msgs := tr.sentTo(2)
	if len(msgs) < 2 || msgs[0].Text != textOfferExpired {
		t.Fatalf("messages = %+v", msgs)
	}
	if len(tr.sentTo(1)) != 0 {
		t.Fatalf("expired offer introduced the liker")
	}
	if msgs[1].Text != textLikesOver {
		t.Fatalf("after queue = %q", msgs[1].Text)
	}
}

func TestMutualLikeFromLikesQueue(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()
	createProfile(t, h, 1, "Ivan", domain.Male, domain.WantFemaleText)
	createProfile(t, h, 2, "Anna", domain.Female, domain.WantMaleText)
	createProfile(t, h, 3, "Oleg", domain.Male, domain.WantFemaleText)

	// Ivan likes Anna first; Oleg is the same sex so Ivan never sees him.
	h.HandleEvent(ctx, textEvent(1, keyboard.SearchButton))
	h.HandleEvent(ctx, textEvent(1, keyboard.LikeButton))
	h.Wait()

	h.HandleEvent(ctx, textEvent(2, keyboard.LikesButton))
	if st, ok := h.states.Get(2).(dialogue.BrowsingLikes); !ok || st.Data.Candidate != 1 {
		t.Fatalf("state = %+v", h.states.Get(2))
	}

	tr.reset()
	h.HandleEvent(ctx, textEvent(2, keyboard.LikeButton))
	h.Wait()

	countLinks := func(chatID int64, link string) int {
		n := 0
		for _, m := range tr.sentTo(chatID) {
			if strings.Contains(m.Text, link) {
				n++
			}
		}
		return n
	}
	if n := countLinks(2, `href="t.me/user1"`); n != 1 {
		t.Fatalf("Anna got %d introductions", n)
	}
	if n := countLinks(1, `href="t.me/user2"`); n != 1 {
		t.Fatalf("Ivan got %d introductions", n)
	}

	n, err := h.likeRepo.CountLikesBetween(ctx, 1, 2)
	if err != nil || n != 0 {
		t.Fatalf("likes between = %d, %v", n, err)
	}

	// The queue is empty, so Anna moves on to the next search candidate.
	msgs := tr.sentTo(2)
	if len(msgs) < 2 || msgs[len(msgs)-2].Text != textLikesOver {
		t.Fatalf("messages = %+v", msgs)
	}
	if st, ok := h.states.Get(2).(dialogue.Browsing); !ok || st.Data.Candidate != 3 {
		t.Fatalf("state = %+v, want Browsing on 3", h.states.Get(2))
	}
}

func TestDislikeInLikesQueue(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()
	createProfile(t, h, 1, "Ivan", domain.Male, domain.WantFemaleText)
	createProfile(t, h, 2, "Anna", domain.Female, domain.WantMaleText)

	h.HandleEvent(ctx, textEvent(1, keyboard.SearchButton))
	h.HandleEvent(ctx, textEvent(1, keyboard.LikeButton))
	h.Wait()

	h.HandleEvent(ctx, textEvent(2, keyboard.LikesButton))
	tr.reset()
	h.HandleEvent(ctx, textEvent(2, keyboard.DislikeButton))

	if n, _ := h.likeRepo.CountLikesBetween(ctx, 1, 2); n != 0 {
		t.Fatalf("like survived a dismiss")
	}
	if len(tr.sentTo(1)) != 0 {
		t.Fatalf("dismiss notified the liker")
	}
	// Ivan was seen through the queue, so search has nothing left either.
	msgs := tr.sentTo(2)
	if len(msgs) != 2 || msgs[0].Text != textLikesOver || msgs[1].Text != textNoSuggestion {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestReactionButtonsWhileIdle(t *testing.T) {
	h, tr := newTestHandler(t)
	createProfile(t, h, 1, "Ivan", domain.Male, domain.WantAnyoneText)
	tr.reset()

	h.HandleEvent(context.Background(), textEvent(1, keyboard.LikeButton))
	msgs := tr.sentTo(1)
	if len(msgs) != 2 || msgs[0].Text != textActivityLost || msgs[1].Text != textMenu {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestStartWithProfileShowsMenu(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()
	createProfile(t, h, 1, "Ivan", domain.Male, domain.WantAnyoneText)
	createProfile(t, h, 2, "Anna", domain.Female, domain.WantAnyoneText)

	h.HandleEvent(ctx, textEvent(1, keyboard.SearchButton))
	h.HandleEvent(ctx, commandEvent(1, "start", ""))

	if last := tr.lastTo(t, 1); last.Text != textMenu {
		t.Fatalf("reply = %q", last.Text)
	}
	if _, idle := h.states.Get(1).(dialogue.Idle); !idle {
		t.Fatalf("state = %s, want Idle", h.states.Get(1).Name())
	}
}

func TestEditNameFlow(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()
	createProfile(t, h, 1, "Ivan", domain.Male, domain.WantAnyoneText)
	tr.reset()

	h.HandleEvent(ctx, textEvent(1, keyboard.ProfileButton))
	profileMsg := tr.lastTo(t, 1).Ref
	if len(tr.markups) != 1 || tr.markups[0].Ref != profileMsg {
		t.Fatalf("edit button not attached: %+v", tr.markups)
	}

	h.HandleEvent(ctx, buttonEvent(1, callback.EnterEditMode(), profileMsg))
	anchor := tr.lastTo(t, 1)
	if anchor.Text != textEditMode {
		t.Fatalf("anchor = %q", anchor.Text)
	}
	es, ok := h.states.EditSession(1)
	if !ok || es.Anchor != anchor.Ref || es.Profile != profileMsg {
		t.Fatalf("edit session = %+v, %v", es, ok)
	}

	h.HandleEvent(ctx, buttonEvent(1, callback.EditField(callback.FieldName), anchor.Ref))
	if last := tr.edits[len(tr.edits)-1]; last.Ref != anchor.Ref || last.Text != editPrompts[callback.FieldName] {
		t.Fatalf("prompt edit = %+v", last)
	}

	tooLong := textEvent(1, strings.Repeat("x", 26))
	h.HandleEvent(ctx, tooLong)
	rejection := tr.lastTo(t, 1).Ref
	if st, ok := h.states.Get(1).(dialogue.EditingField); !ok || len(st.Origin.Prompts) != 2 {
		t.Fatalf("state after rejection = %+v", h.states.Get(1))
	}

	valid := textEvent(1, "Иван")
	h.HandleEvent(ctx, valid)

	p, _ := h.profileRepo.GetProfile(ctx, 1)
	if p.Name != "Иван" {
		t.Fatalf("name = %q", p.Name)
	}
	want := []transport.MessageRef{valid.Message, rejection, tooLong.Message}
	if len(tr.deleted) != len(want) {
		t.Fatalf("deleted = %+v, want %+v", tr.deleted, want)
	}
	for i := range want {
		if tr.deleted[i] != want[i] {
			t.Fatalf("deleted = %+v, want %+v", tr.deleted, want)
		}
	}
	if last := tr.edits[len(tr.edits)-1]; last.Ref != anchor.Ref || last.Text != textEditMode {
		t.Fatalf("anchor not restored: %+v", last)
	}
	if _, idle := h.states.Get(1).(dialogue.Idle); !idle {
		t.Fatalf("state = %s, want Idle", h.states.Get(1).Name())
	}
}

func TestEditHearingLevelAndDescription(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()
	createProfile(t, h, 1, "Anna", domain.Female, domain.WantAnyoneText)
	anchor := transport.MessageRef{ChatID: 1, MessageID: 500}

	h.HandleEvent(ctx, buttonEvent(1, callback.EditField(callback.FieldHearingLevel), anchor))
	if _, idle := h.states.Get(1).(dialogue.Idle); !idle {
		t.Fatalf("hearing prompt changed state to %s", h.states.Get(1).Name())
	}
	h.HandleEvent(ctx, buttonEvent(1, callback.SetHearing(domain.HearingImpaired), anchor))

	h.HandleEvent(ctx, buttonEvent(1, callback.EditField(callback.FieldDescription), anchor))
	h.HandleEvent(ctx, textEvent(1, "люблю походы"))

	p, _ := h.profileRepo.GetProfile(ctx, 1)
	if p.HearingLevel != domain.HearingImpaired {
		t.Fatalf("hearing level = %s", p.HearingLevel)
	}
	if p.Description == nil || *p.Description != "люблю походы" {
		t.Fatalf("description = %v", p.Description)
	}

	h.HandleEvent(ctx, buttonEvent(1, callback.LeaveDescriptionEmpty(), anchor))
	p, _ = h.profileRepo.GetProfile(ctx, 1)
	if p.Description != nil {
		t.Fatalf("description = %q, want cleared", *p.Description)
	}
	if last := tr.edits[len(tr.edits)-1]; last.Text != textEditMode {
		t.Fatalf("anchor = %+v", last)
	}
}

func TestEditPhotoReplacesAll(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx := context.Background()
	createProfile(t, h, 1, "Anna", domain.Female, domain.WantAnyoneText)
	anchor := transport.MessageRef{ChatID: 1, MessageID: 500}

	h.HandleEvent(ctx, buttonEvent(1, callback.EditField(callback.FieldPhoto), anchor))
	// Text is the wrong shape for a photo prompt.
	h.HandleEvent(ctx, textEvent(1, "not a photo"))
	if _, ok := h.states.Get(1).(dialogue.EditingField); !ok {
		t.Fatalf("wrong-shaped reply left the edit")
	}
	h.HandleEvent(ctx, photoEvent(1, "new-photo"))

	p, _ := h.profileRepo.GetProfile(ctx, 1)
	if len(p.Photos) != 1 || p.Photos[0] != "new-photo" {
		t.Fatalf("photos = %v", p.Photos)
	}
}

func TestFinishEditing(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()
	createProfile(t, h, 1, "Anna", domain.Female, domain.WantAnyoneText)
	tr.reset()

	h.HandleEvent(ctx, textEvent(1, keyboard.ProfileButton))
	profileMsg := tr.lastTo(t, 1).Ref
	h.HandleEvent(ctx, buttonEvent(1, callback.EnterEditMode(), profileMsg))
	anchor := tr.lastTo(t, 1).Ref

	tr.reset()
	h.HandleEvent(ctx, buttonEvent(1, callback.Finish(), anchor))

	if len(tr.deleted) != 2 || tr.deleted[0] != anchor || tr.deleted[1] != profileMsg {
		t.Fatalf("deleted = %+v", tr.deleted)
	}
	msgs := tr.sentTo(1)
	if len(msgs) != 2 || msgs[0].Text != textNewProfile || len(msgs[1].Photos) != 1 {
		t.Fatalf("messages = %+v", msgs)
	}
	if _, ok := h.states.EditSession(1); ok {
		t.Fatalf("edit session survived finish")
	}
}

func TestCallbacksAreAnswered(t *testing.T) {
	h, tr := newTestHandler(t)
	createProfile(t, h, 1, "Anna", domain.Female, domain.WantAnyoneText)
	tr.reset()

	ev := buttonEvent(1, "BOGUS:payload", transport.MessageRef{ChatID: 1, MessageID: 7})
	h.HandleEvent(context.Background(), ev)

	if len(tr.answered) != 1 || tr.answered[0] != ev.CallbackID {
		t.Fatalf("answered = %v", tr.answered)
	}
	if len(tr.sent) != 0 || len(tr.edits) != 0 || len(tr.deleted) != 0 {
		t.Fatalf("undecodable callback had effects")
	}
}

func TestAdminCommands(t *testing.T) {
	h, tr := newTestHandler(t)
	ctx := context.Background()
	createProfile(t, h, 1, "Anna", domain.Female, domain.WantAnyoneText)
	createProfile(t, h, 2, "Ivan", domain.Male, domain.WantAnyoneText)
	tr.reset()

	h.HandleEvent(ctx, commandEvent(1, adminStats, ""))
	if len(tr.sentTo(1)) != 0 {
		t.Fatalf("non-admin got stats")
	}
	if last := tr.lastTo(t, adminID); !strings.Contains(last.Text, "user_id: 1") {
		t.Fatalf("admin alert = %q", last.Text)
	}

	h.HandleEvent(ctx, commandEvent(adminID, adminStats, ""))
	if last := tr.lastTo(t, adminID); !strings.Contains(last.Text, "Анкеты: 2") {
		t.Fatalf("stats = %q", last.Text)
	}

	h.HandleEvent(ctx, commandEvent(adminID, adminExport, ""))
	if len(tr.documents) != 1 || !strings.HasSuffix(tr.documents[0], ".xlsx") {
		t.Fatalf("documents = %v", tr.documents)
	}

	h.HandleEvent(ctx, commandEvent(adminID, adminBroadcast, "Привет всем"))
	for _, id := range []int64{1, 2} {
		if last := tr.lastTo(t, id); last.Text != "Привет всем" {
			t.Fatalf("user %d got %q", id, last.Text)
		}
	}
	if last := tr.edits[len(tr.edits)-1]; !strings.Contains(last.Text, "Успешно: 2") {
		t.Fatalf("broadcast summary = %q", last.Text)
	}
}

func TestUpdateLogOmitsMessageText(t *testing.T) {
	h, _ := newTestHandler(t)
	core, logs := observer.New(zap.DebugLevel)
	h.logger = zap.New(core)

	msg := privateMessage("Мой секретный адрес")
	h.DefaultHandler(context.Background(), nil, &models.Update{Message: msg})

	entries := logs.FilterMessage("Received update").All()
	if len(entries) != 1 {
		t.Fatalf("got %d update logs", len(entries))
	}
	for _, f := range entries[0].Context {
		if strings.Contains(f.String, "секретный") {
			t.Fatalf("field %q leaks message text", f.Key)
		}
	}
	if got := entries[0].ContextMap()["text_len"]; got != int64(len(msg.Text)) {
		t.Fatalf("text_len = %v", got)
	}
}

func TestHealthAndStatsEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	createProfile(t, h, 1, "Anna", domain.Female, domain.WantAnyoneText)

	rec := httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"database":"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"profiles":1`) {
		t.Fatalf("stats = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.StatsHandler(rec, httptest.NewRequest(http.MethodPost, "/api/stats", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST stats = %d", rec.Code)
	}
}
