package dto

type ConnectURLResponse struct {
	URL string `json:"url"`
}

type StatusResponse struct {
	Connected bool    `json:"connected"`
	RealmID   *string `json:"realm_id"`
}
