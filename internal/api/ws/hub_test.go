package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

type fixedSnapshot struct{ u *events.LiveMatchUpdate }

func (f fixedSnapshot) Latest(context.Context) (*events.LiveMatchUpdate, error) { return f.u, nil }

func dial(srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	So(err, ShouldBeNil)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readUpdate(conn *websocket.Conn) events.LiveMatchUpdate {
	_, b, err := conn.ReadMessage()
	So(err, ShouldBeNil)
	var u events.LiveMatchUpdate
	So(json.Unmarshal(b, &u), ShouldBeNil)
	return u
}

func TestHub(t *testing.T) {
	Convey("Given a hub with a cached live match", t, func() {
		snap := &events.LiveMatchUpdate{SessionID: "s1", State: events.LiveInProgress, MatchID: 42, Scores: [2]int{3, 1}}
		hub := NewHub(zap.NewNop(), fixedSnapshot{u: snap}, func(*http.Request) bool { return true })
		srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
		defer srv.Close()

		conn := dial(srv)
		defer conn.Close()

		Convey("Then a new client gets the snapshot first", func() {
			u := readUpdate(conn)
			So(u.MatchID, ShouldEqual, 42)
			So(u.Scores, ShouldResemble, [2]int{3, 1})
			So(hub.Clients(), ShouldEqual, 1)
		})

		Convey("When an update is broadcast", func() {
			readUpdate(conn)
			b, _ := json.Marshal(events.LiveMatchUpdate{SessionID: "s1", State: events.LiveCompleted, Winner: "team_mara"})
			hub.Broadcast(b)

			Convey("Then the client receives it", func() {
				u := readUpdate(conn)
				So(u.State, ShouldEqual, events.LiveCompleted)
				So(u.Winner, ShouldEqual, "team_mara")
			})
		})

		Convey("When the client pings", func() {
			readUpdate(conn)
			So(conn.WriteJSON(ClientMsg{Type: "ping"}), ShouldBeNil)

			Convey("Then the hub answers pong", func() {
				_, b, err := conn.ReadMessage()
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"type":"pong"}`)
			})
		})
	})

	Convey("Given a hub with nothing cached", t, func() {
		hub := NewHub(zap.NewNop(), fixedSnapshot{}, func(*http.Request) bool { return true })
		srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
		defer srv.Close()

		conn := dial(srv)
		defer conn.Close()

		Convey("Then the first message is the first broadcast", func() {
			So(conn.WriteJSON(ClientMsg{Type: "ping"}), ShouldBeNil)
			_, b, err := conn.ReadMessage()
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"type":"pong"}`)

			hub.Broadcast([]byte(`{"session_id":"s2","state":"ANNOUNCED"}`))
			u := readUpdate(conn)
			So(u.SessionID, ShouldEqual, "s2")
		})
	})
}
