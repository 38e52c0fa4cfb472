package domain

const MailTypeDispatchConfirmed = "dispatch_confirmed"

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type DispatchConfirmedMailData struct {
	FullName     string   `json:"fullName"`
	ProjectTitle string   `json:"projectTitle"`
	Date         string   `json:"date"`
	MeetingTime  string   `json:"meetingTime"`
	Workers      []string `json:"workers"`
	Vehicles     []string `json:"vehicles"`
	Remarks      string   `json:"remarks"`
}
