package quote

import (
	"bytes"
	"encoding/json"
	"errors"
	"maps"
)

// ErrDetailsKind is returned when a details view does not match the line kind.
var ErrDetailsKind = errors.New("quote: details kind mismatch")

// DetailsKind tags the category-specific payload of a line.
type DetailsKind string

const (
	KindRaw       DetailsKind = "raw"
	KindNote      DetailsKind = "note"
	KindCost      DetailsKind = "cost"
	KindFlight    DetailsKind = "flight"
	KindTrain     DetailsKind = "train"
	KindHotel     DetailsKind = "hotel"
	KindCarRental DetailsKind = "car_rental"
	KindService   DetailsKind = "service"
)

// KindForCategory maps a line category onto its details kind.
func KindForCategory(category string) DetailsKind {
	switch category {
	case CategoryTripInfo, CategoryInternalInfo:
		return KindNote
	case CategoryCost:
		return KindCost
	case CategoryFlight:
		return KindFlight
	case CategoryTrain, CategoryFerry:
		return KindTrain
	case CategoryNewHotel, CategoryHotel:
		return KindHotel
	case CategoryCarRental:
		return KindCarRental
	case CategoryNewService:
		return KindService
	default:
		return KindRaw
	}
}

// Details holds the category-specific payload of a line (the backend
// "raw_json" bag). Values are kept as raw JSON so that unknown keys and
// original number/string encodings survive a load/save round trip. Typed
// views are decoded on demand.
type Details struct {
	kind   DetailsKind
	fields map[string]json.RawMessage
}

// NoteDetails is the payload of Trip info and Internal info lines.
type NoteDetails struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// CostDetails is the payload of Cost lines.
type CostDetails struct {
	Title    string `json:"title,omitempty"`
	Body     string `json:"body,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// FlightDetails is the payload of Flight lines.
type FlightDetails struct {
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	Airline      string `json:"airline,omitempty"`
	DepTime      string `json:"dep_time,omitempty"`
	ArrTime      string `json:"arr_time,omitempty"`
	Note         string `json:"note,omitempty"`
	Description  string `json:"description,omitempty"`
	InternalNote string `json:"internal_note,omitempty"`
}

// TrainDetails is the payload of Train and Ferry lines.
type TrainDetails struct {
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	ClassType    string `json:"class_type,omitempty"`
	DepTime      string `json:"dep_time,omitempty"`
	ArrTime      string `json:"arr_time,omitempty"`
	SeatRes      string `json:"seat_res,omitempty"`
	Note         string `json:"note,omitempty"`
	InternalNote string `json:"internal_note,omitempty"`
}

// HotelDetails is the payload of hotel lines.
type HotelDetails struct {
	HotelName    string `json:"hotel_name,omitempty"`
	Stars        int    `json:"stars,omitempty"`
	RoomType     string `json:"room_type,omitempty"`
	Breakfast    bool   `json:"breakfast,omitempty"`
	HotelURL     string `json:"hotel_url,omitempty"`
	Description  string `json:"description,omitempty"`
	InternalNote string `json:"internal_note,omitempty"`
}

// CarRentalDetails is the payload of Car Rental lines.
type CarRentalDetails struct {
	PickupLocation      string `json:"pickup_loc,omitempty"`
	DropoffLocation     string `json:"dropoff_loc,omitempty"`
	PickupDate          string `json:"pickup_date,omitempty"`
	PickupTime          string `json:"pickup_time,omitempty"`
	DropoffDate         string `json:"dropoff_date,omitempty"`
	DropoffTime         string `json:"dropoff_time,omitempty"`
	ExpectedDropoffDate string `json:"expected_dropoff_date,omitempty"`
	VehicleType         string `json:"vehicle_type,omitempty"`
	Transmission        string `json:"transmission,omitempty"`
	OneWayFee           string `json:"one_way_fee,omitempty"`
	Mileage             string `json:"mileage,omitempty"`
	Insurance           string `json:"insurance,omitempty"`
	Notes               string `json:"notes,omitempty"`
	Description         string `json:"description,omitempty"`
	IntlDriverLicense   bool   `json:"intl_driver_license"`
	InternalNote        string `json:"internal_note,omitempty"`
}

// ServiceDetails is the payload of New Service lines.
type ServiceDetails struct {
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	CategoryLabel string `json:"category_label,omitempty"`
	StartTime     string `json:"start_time,omitempty"`
	Duration      string `json:"duration,omitempty"`
	PriceAmount   string `json:"price_amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

// DecodeDetails builds the variant for a category from a raw JSON object.
// Empty or null input yields empty details.
func DecodeDetails(category string, raw json.RawMessage) (Details, error) {
	d := Details{kind: KindForCategory(category)}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return d, nil
	}
	if err := json.Unmarshal(trimmed, &d.fields); err != nil {
		return Details{}, err
	}
	return d, nil
}

// NewDetails encodes a typed view into details of the matching kind.
func NewDetails(category string, view any) (Details, error) {
	d := Details{kind: KindForCategory(category)}
	if view == nil {
		return d, nil
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return Details{}, err
	}
	return DecodeDetails(category, raw)
}

// Kind returns the variant tag.
func (d Details) Kind() DetailsKind {
	if d.kind == "" {
		return KindRaw
	}
	return d.kind
}

// Empty reports whether the payload carries no keys.
func (d Details) Empty() bool { return len(d.fields) == 0 }

// Get returns the raw JSON value stored under key.
func (d Details) Get(key string) (json.RawMessage, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// With returns a copy with key set to the JSON encoding of value.
func (d Details) With(key string, value any) (Details, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return d, err
	}
	out := d.Clone()
	if out.fields == nil {
		out.fields = map[string]json.RawMessage{}
	}
	out.fields[key] = raw
	return out, nil
}

// Merge returns a copy where keys of the encoded view overwrite existing ones.
// Keys the view does not carry are preserved.
func (d Details) Merge(view any) (Details, error) {
	patch, err := NewDetails("", view)
	if err != nil {
		return d, err
	}
	out := d.Clone()
	if out.fields == nil {
		out.fields = map[string]json.RawMessage{}
	}
	maps.Copy(out.fields, patch.fields)
	return out, nil
}

// Retag returns the details under the kind of another category.
func (d Details) Retag(category string) Details {
	out := d.Clone()
	out.kind = KindForCategory(category)
	return out
}

// Clone returns a deep copy.
func (d Details) Clone() Details {
	out := Details{kind: d.kind}
	if d.fields != nil {
		out.fields = make(map[string]json.RawMessage, len(d.fields))
		for k, v := range d.fields {
			out.fields[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// Note decodes the note view.
func (d Details) Note() (NoteDetails, error) {
	var v NoteDetails
	return v, d.decode(KindNote, &v)
}

// Cost decodes the cost view.
func (d Details) Cost() (CostDetails, error) {
	var v CostDetails
	return v, d.decode(KindCost, &v)
}

// Flight decodes the flight view.
func (d Details) Flight() (FlightDetails, error) {
	var v FlightDetails
	return v, d.decode(KindFlight, &v)
}

// Train decodes the train/ferry view.
func (d Details) Train() (TrainDetails, error) {
	var v TrainDetails
	return v, d.decode(KindTrain, &v)
}

// Hotel decodes the hotel view.
func (d Details) Hotel() (HotelDetails, error) {
	var v HotelDetails
	return v, d.decode(KindHotel, &v)
}

// CarRental decodes the car rental view.
func (d Details) CarRental() (CarRentalDetails, error) {
	var v CarRentalDetails
	return v, d.decode(KindCarRental, &v)
}

// Service decodes the new service view.
func (d Details) Service() (ServiceDetails, error) {
	var v ServiceDetails
	return v, d.decode(KindService, &v)
}

func (d Details) decode(kind DetailsKind, dst any) error {
	if d.Kind() != kind {
		return ErrDetailsKind
	}
	if len(d.fields) == 0 {
		return nil
	}
	raw, err := json.Marshal(d.fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// MarshalJSON encodes the payload as a plain JSON object.
func (d Details) MarshalJSON() ([]byte, error) {
	if d.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.fields)
}

// UnmarshalJSON decodes a plain JSON object. The kind is assigned by the
// enclosing line once its category is known.
func (d *Details) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeDetails("", data)
	if err != nil {
		return err
	}
	d.fields = decoded.fields
	if d.kind == "" {
		d.kind = decoded.kind
	}
	return nil
}
