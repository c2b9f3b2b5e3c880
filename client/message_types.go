package client

import "time"

type BoxType string

const (
	BoxInbox     BoxType = "inbox"
	BoxDraft     BoxType = "draft"
	BoxScheduled BoxType = "scheduled"
	BoxSent      BoxType = "outbox"
	BoxTrash     BoxType = "trash"
)

type SortField string

const (
	SortByDate       SortField = "date"
	SortByFrom       SortField = "from"
	SortByReadUnread SortField = "status"
	SortByAttachment SortField = "attachment"
	SortByFlag       SortField = "label"
)

type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

type MessageLabel int

const (
	LabelNone MessageLabel = iota
	LabelGreen
	LabelYellow
	LabelRed
	LabelBlue
)

// MessageListOptions select and order the message headers of a box. The
// zero value lists the inbox, newest first.
type MessageListOptions struct {
	Box   BoxType
	Sort  SortField
	Order SortOrder
	// AlreadySeen turns the listing into a poll for messages other than these.
	AlreadySeen []int
}

// ShortMessage is a message header as shown in a mailbox listing.
type ShortMessage struct {
	ID                int
	From              string
	FromImage         string
	Subject           string
	Date              time.Time
	Status            int
	Attachment        int
	Unread            bool
	Label             bool
	Deleted           bool
	AllowReply        bool
	AllowReplyEnabled bool
	HasReply          bool
	HasForward        bool
	RealBox           string
	SendDate          time.Time
}

type FullMessage struct {
	ID            int
	From          string
	To            string
	Subject       string
	Date          time.Time
	Body          string
	Status        int
	Attachment    int
	Unread        bool
	Label         bool
	Receivers     []string
	CCReceivers   []string
	BCCReceivers  []string
	SenderPicture string
	FromTeam      int
	CanReply      bool
	HasReply      bool
	HasForward    bool
	SendDate      time.Time
}

type Attachment struct {
	FileID      int
	Name        string
	Mime        string
	Size        string
	Icon        string
	WopiAllowed bool
	Order       int
}

// MessageChanged reports the new status or label of a message.
type MessageChanged struct {
	ID  int
	New int
}

type MessageDeletionStatus struct {
	MsgID     int
	BoxType   string
	IsDeleted bool
}
