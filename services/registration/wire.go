package registration

type exchangeVersionRequest struct {
	Version string `json:"version" cbor:"1,keyasint"`
}

type exchangeVersionResponse struct {
	Version string `json:"version" cbor:"1,keyasint"`
}

type discoverRequest struct {
	CommunicationVersion string `json:"communicationVersion" cbor:"1,keyasint"`
}

type serviceInformation struct {
	Type     int32  `json:"type" cbor:"1,keyasint"`
	Location string `json:"location" cbor:"2,keyasint"`
}

type discoverResponse struct {
	ComID    string               `json:"comId" cbor:"1,keyasint"`
	Services []serviceInformation `json:"services,omitempty" cbor:"2,keyasint,omitempty"`
}

type registerRequest struct {
	Type     int32  `json:"type" cbor:"1,keyasint"`
	Location string `json:"location" cbor:"2,keyasint"`
}

type registerResponse struct{}
