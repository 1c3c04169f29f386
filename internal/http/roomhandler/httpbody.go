package roomhandler

type RoomSummary struct {
	Name    string `json:"name"    example:"lobby"`
	Owner   string `json:"owner"   example:"alice"`
	Members int    `json:"members" example:"2"`
} // @name RoomSummary

type RoomDetail struct {
	Name    string   `json:"name"    example:"lobby"`
	Owner   string   `json:"owner"   example:"alice"`
	Members []string `json:"members" example:"alice,bob"`
} // @name RoomDetail

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListRoomsQuery struct {
	Limit  int `form:"limit,default=100" binding:"gte=0,lte=1000"`
	Offset int `form:"offset,default=0"  binding:"gte=0"`
} // @name ListRoomsQuery
