package roomhandler

import (
	"net/http"

	"chatrelay/internal/chat"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Directory is the slice of the room registry the admin API needs.
type Directory interface {
	Rooms() []*chat.Room
	Get(name string) (*chat.Room, bool)
	Remove(name string)
}

type Handler struct {
	rooms Directory
}

func New(rooms Directory) *Handler { return &Handler{rooms: rooms} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.list)
	r.GET("/rooms/:name", h.info)
	r.DELETE("/rooms/:name", h.close)
}

// @Summary		List rooms
// @Description	Returns live rooms sorted by name, paginated by limit/offset.
// @Tags			Rooms
// @Param			limit	query		int	false	"Max results (0-1000)"	minimum(0)	maximum(1000)	default(100)
// @Param			offset	query		int	false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		RoomSummary
// @Failure		400		{object}	ErrorResponse
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	var q ListRoomsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	rooms := h.rooms.Rooms()
	if q.Offset >= len(rooms) {
		rooms = nil
	} else {
		rooms = rooms[q.Offset:]
	}
	if q.Limit < len(rooms) {
		rooms = rooms[:q.Limit]
	}

	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomSummary{Name: r.Name(), Owner: r.Owner().Name(), Members: r.Len()})
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Get room details
// @Description	Returns the owner and member names of one room.
// @Tags			Rooms
// @Param			name	path		string	true	"Room name"	default(lobby)
// @Success		200		{object}	RoomDetail
// @Failure		404		{object}	ErrorResponse
// @Router			/rooms/{name} [get]
func (h *Handler) info(c *gin.Context) {
	r, ok := h.rooms.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: chat.ErrRoomNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, RoomDetail{Name: r.Name(), Owner: r.Owner().Name(), Members: r.Members()})
}

// @Summary		Close a room
// @Description	Administrative equivalent of the owner's CLOSE_ROOM: members are told and disconnected.
// @Tags			Rooms
// @Param			name	path	string	true	"Room name"	default(lobby)
// @Success		202
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{name} [delete]
func (h *Handler) close(c *gin.Context) {
	name := c.Param("name")
	if _, ok := h.rooms.Get(name); !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: chat.ErrRoomNotFound.Error()})
		return
	}
	h.rooms.Remove(name)
	zap.L().Info("admin.room_closed", zap.String("room", name), zap.String("remote", c.ClientIP()))
	c.Status(http.StatusAccepted)
}
