package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tabletap/tabletap/models"
	"github.com/tabletap/tabletap/utils"
)

// Event types
const (
	EventOrderInsert   = "order_insert"
	EventOrderUpdate   = "order_update"
	EventSessionUpdate = "session_update"
	EventTableUpdate   = "table_update"
	EventResync        = "resync"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub fans restaurant-scoped events out to every subscribed device:
// guest phones at the tables and the kitchen display. Clients filter
// further by table label or qr token on their side.
type Hub struct {
	clients map[*websocket.Conn]uint // conn -> restaurant ID
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]uint),
}

// RegisterClient subscribes a connection to one restaurant's feed. A
// resync hint is sent immediately so a reconnecting client refetches
// everything it may have missed while offline. The hint goes out under
// the hub mutex: every write to a registered conn holds it, so a
// broadcast can never interleave with the hint on the same socket.
func RegisterClient(conn *websocket.Conn, restaurantID uint) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	hub.clients[conn] = restaurantID
	send(conn, Message{Event: EventResync, Data: map[string]interface{}{
		"restaurant_id": restaurantID,
	}})
}

// UnregisterClient releases a connection.
func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

// ClientCount reports how many connections are subscribed to a restaurant.
func ClientCount(restaurantID uint) int {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	n := 0
	for _, rid := range hub.clients {
		if rid == restaurantID {
			n++
		}
	}
	return n
}

func BroadcastOrderInsert(order models.OrderRecord) {
	broadcast(order.RestaurantID, Message{Event: EventOrderInsert, Data: order})
}

func BroadcastOrderUpdate(order models.OrderRecord) {
	broadcast(order.RestaurantID, Message{Event: EventOrderUpdate, Data: order})
}

func BroadcastSessionUpdate(session models.TableSession) {
	broadcast(session.RestaurantID, Message{Event: EventSessionUpdate, Data: session})
}

func BroadcastTableUpdate(table models.Table) {
	broadcast(table.RestaurantID, Message{Event: EventTableUpdate, Data: table})
}

func broadcast(restaurantID uint, msg Message) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("realtime: marshal message: %v", err)
		return
	}

	for conn, rid := range hub.clients {
		if rid != restaurantID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("realtime: write to client: %v", err)
		}
	}
}

func send(conn *websocket.Conn, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		utils.ErrorLogger.Printf("realtime: write to client: %v", err)
	}
}
