// Package ws реализует WebSocket подписки на смену статуса заказа.
package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// client оборачивает соединение мьютексом записи: gorilla/websocket допускает
// не более одного писателя одновременно, а в соединение пишут и горутина
// хендлера (снапшот), и горутина консюмера через Broadcast.
type client struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (c *client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *client) close() error {
	return c.conn.Close()
}

// Registry держит отображение id заказа на множество живых соединений. Все мутации
// защищены одним мьютексом; I/O под этим мьютексом не выполняется. Реестр локален
// для процесса — событие доходит до всех инстансов через fanout обменник.
type Registry struct {
	mu          sync.Mutex
	connections map[uuid.UUID]map[*client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[uuid.UUID]map[*client]struct{}),
	}
}

// Connect регистрирует соединение после хендшейка и возвращает обертку,
// через которую идут все последующие записи в это соединение.
func (r *Registry) Connect(orderID uuid.UUID, conn *websocket.Conn) *client {
	cl := &client{conn: conn}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.connections[orderID]
	if !ok {
		set = make(map[*client]struct{})
		r.connections[orderID] = set
	}
	set[cl] = struct{}{}
	return cl
}

// Disconnect удаляет соединение; пустое множество удаляется целиком, иначе мапа
// растет бесконечно на закрытых заказах.
func (r *Registry) Disconnect(orderID uuid.UUID, cl *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(orderID, cl)
}

func (r *Registry) removeLocked(orderID uuid.UUID, cls ...*client) {
	set, ok := r.connections[orderID]
	if !ok {
		return
	}
	for _, cl := range cls {
		delete(set, cl)
	}
	if len(set) == 0 {
		delete(r.connections, orderID)
	}
}

// Broadcast рассылает сообщение всем подписчикам заказа. Снимок множества соединений
// берется под мьютексом, сама отправка — вне его. Ошибка отправки одному соединению
// закрывает его; все упавшие соединения удаляются из реестра одним проходом под
// мьютексом, остальные получают сообщение.
func (r *Registry) Broadcast(orderID uuid.UUID, message []byte) {
	r.mu.Lock()
	set := r.connections[orderID]
	clients := make([]*client, 0, len(set))
	for cl := range set {
		clients = append(clients, cl)
	}
	r.mu.Unlock()

	var failed []*client
	for _, cl := range clients {
		if writeErr := cl.write(websocket.TextMessage, message); writeErr != nil {
			_ = cl.close()
			failed = append(failed, cl)
		}
	}
	if len(failed) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(orderID, failed...)
}
