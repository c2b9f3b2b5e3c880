package client

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const (
	messagesDispatcher = "/?module=Messages&file=dispatcher"
	messagesSubsystem  = "postboxes"
	archivePath        = "/Messages/Xhr/archivemessages"
)

// MessageHeadersEndpoint lists the headers of one mailbox. Never cached.
func MessageHeadersEndpoint(opts MessageListOptions) Endpoint[ShortMessage] {
	if opts.Box == "" {
		opts.Box = BoxInbox
	}
	if opts.Sort == "" {
		opts.Sort = SortByDate
	}
	if opts.Order == "" {
		opts.Order = SortDescending
	}

	poll := "false"
	seen := make([]string, len(opts.AlreadySeen))
	for i, id := range opts.AlreadySeen {
		seen[i] = strconv.Itoa(id)
	}
	if len(seen) > 0 {
		poll = "true"
	}

	return Endpoint[ShortMessage]{
		Path:      messagesDispatcher,
		Subsystem: messagesSubsystem,
		Action:    "message list",
		Params: []Param{
			{"boxType", string(opts.Box)},
			{"boxID", "0"},
			{"sortField", string(opts.Sort)},
			{"sortKey", string(opts.Order)},
			{"poll", poll},
			{"poll_ids", strings.Join(seen, ",")},
			{"layout", "new"},
		},
		XPath: ".//messages/message",
		New:   newShortMessage,
		Cache: NoCache{},
	}
}

func (s *Session) MessageHeaders(ctx context.Context, opts MessageListOptions) ([]ShortMessage, error) {
	return Fetch(ctx, s, MessageHeadersEndpoint(opts))
}

func messageParams(id int, box BoxType) []Param {
	return []Param{
		{"msgID", strconv.Itoa(id)},
		{"boxType", string(box)},
		{"limitList", "true"},
	}
}

// MessageEndpoint fetches one full message, cached per (id, box).
func MessageEndpoint(id int, box BoxType) Endpoint[FullMessage] {
	return Endpoint[FullMessage]{
		Path:        messagesDispatcher,
		Subsystem:   messagesSubsystem,
		Action:      "show message",
		Params:      messageParams(id, box),
		XPath:       ".//data/message",
		New:         newFullMessage,
		PostProcess: unwrapReceivers,
		Cache:       Keyed(id, box),
	}
}

func (s *Session) Message(ctx context.Context, id int, box BoxType) (FullMessage, error) {
	return Get(ctx, s, MessageEndpoint(id, box))
}

func AttachmentsEndpoint(id int, box BoxType) Endpoint[Attachment] {
	return Endpoint[Attachment]{
		Path:      messagesDispatcher,
		Subsystem: messagesSubsystem,
		Action:    "attachment list",
		Params:    messageParams(id, box),
		XPath:     ".//attachmentlist/attachment",
		New:       newAttachment,
		Cache:     Keyed(id, box),
	}
}

func (s *Session) Attachments(ctx context.Context, id int, box BoxType) ([]Attachment, error) {
	return Fetch(ctx, s, AttachmentsEndpoint(id, box))
}

func (s *Session) MarkMessageUnread(ctx context.Context, id int, box BoxType) (MessageChanged, error) {
	return Get(ctx, s, Endpoint[MessageChanged]{
		Path:      messagesDispatcher,
		Subsystem: messagesSubsystem,
		Action:    "mark message unread",
		Params: []Param{
			{"boxType", string(box)},
			{"boxID", "0"},
			{"msgID", strconv.Itoa(id)},
			{"clAction", "status"},
		},
		XPath: ".//data/message",
		New:   newMessageChanged,
		Cache: NoCache{},
	})
}

func (s *Session) AdjustMessageLabel(ctx context.Context, id int, box BoxType, label MessageLabel) (MessageChanged, error) {
	return Get(ctx, s, Endpoint[MessageChanged]{
		Path:      messagesDispatcher,
		Subsystem: messagesSubsystem,
		Action:    "save msglabel",
		Params: []Param{
			{"boxType", string(box)},
			{"msgLabel", strconv.Itoa(int(label))},
			{"msgID", strconv.Itoa(id)},
			{"clAction", "label"},
		},
		XPath: ".//data/message",
		New:   newMessageChanged,
		Cache: NoCache{},
	})
}

func (s *Session) MoveMessageToTrash(ctx context.Context, id int) (MessageDeletionStatus, error) {
	return Get(ctx, s, Endpoint[MessageDeletionStatus]{
		Path:      messagesDispatcher,
		Subsystem: messagesSubsystem,
		Action:    "quick delete",
		Params:    []Param{{"msgID", strconv.Itoa(id)}},
		XPath:     ".//data/details",
		New:       newMessageDeletionStatus,
		Cache:     NoCache{},
	})
}

// MoveMessagesToArchive archives ids. Archiving goes through a JSON endpoint
// instead of the XML dispatcher; New is 1 for every id the portal accepted.
func (s *Session) MoveMessagesToArchive(ctx context.Context, ids ...int) ([]MessageChanged, error) {
	data := url.Values{}
	for _, id := range ids {
		data.Add("msgIDs[]", strconv.Itoa(id))
	}

	var reply struct {
		Success []any `json:"success"`
	}
	raw, err := s.JSON(ctx, "POST", archivePath, data, xhrHeader())
	if err != nil {
		return nil, err
	}
	if err := convertJSON(raw, &reply); err != nil {
		return nil, &JSONError{URL: s.CreateURL(archivePath), Err: err}
	}

	accepted := make([]string, len(reply.Success))
	for i, v := range reply.Success {
		accepted[i] = fmt.Sprint(v)
	}

	changed := make([]MessageChanged, len(ids))
	for i, id := range ids {
		changed[i] = MessageChanged{ID: id}
		if slices.Contains(accepted, strconv.Itoa(id)) {
			changed[i].New = 1
		}
	}
	return changed, nil
}

// DownloadAttachment returns the content of one attachment. progress, if not
// nil, is called as bytes arrive.
func (s *Session) DownloadAttachment(ctx context.Context, fileID int, progress func(read, total int64)) ([]byte, error) {
	path := fmt.Sprintf("/?module=Messages&file=download&fileID=%d&target=0", fileID)
	resp, err := s.Get(ctx, path, &RequestOptions{Progress: progress})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, newDownloadError(resp)
	}
	return resp.Body, nil
}

// unwrapReceivers flattens <receivers><to>..</to></receivers> and its cc and
// bcc siblings into plain lists.
func unwrapReceivers(el Element) error {
	for _, key := range []string{"receivers", "ccreceivers", "bccreceivers"} {
		el.unwrapList(key, "to")
	}
	return nil
}

func newShortMessage(el Element) (ShortMessage, error) {
	if err := el.Require("id", "subject"); err != nil {
		return ShortMessage{}, err
	}
	return ShortMessage{
		ID:                el.Int("id"),
		From:              el.Text("from"),
		FromImage:         el.Text("fromImage"),
		Subject:           el.Text("subject"),
		Date:              el.Time("date"),
		Status:            el.Int("status"),
		Attachment:        el.Int("attachment"),
		Unread:            el.Bool("unread"),
		Label:             el.Bool("label"),
		Deleted:           el.Bool("deleted"),
		AllowReply:        el.Bool("allowreply"),
		AllowReplyEnabled: el.Bool("allowreplyenabled"),
		HasReply:          el.Bool("hasreply"),
		HasForward:        el.Bool("hasForward"),
		RealBox:           el.Text("realBox"),
		SendDate:          el.Time("sendDate"),
	}, nil
}

func newFullMessage(el Element) (FullMessage, error) {
	if err := el.Require("id", "subject"); err != nil {
		return FullMessage{}, err
	}
	return FullMessage{
		ID:            el.Int("id"),
		From:          el.Text("from"),
		To:            el.Text("to"),
		Subject:       el.Text("subject"),
		Date:          el.Time("date"),
		Body:          el.Text("body"),
		Status:        el.Int("status"),
		Attachment:    el.Int("attachment"),
		Unread:        el.Bool("unread"),
		Label:         el.Bool("label"),
		Receivers:     el.Strings("receivers"),
		CCReceivers:   el.Strings("ccreceivers"),
		BCCReceivers:  el.Strings("bccreceivers"),
		SenderPicture: el.Text("senderPicture"),
		FromTeam:      el.Int("fromTeam"),
		CanReply:      el.Bool("canReply"),
		HasReply:      el.Bool("hasReply"),
		HasForward:    el.Bool("hasForward"),
		SendDate:      el.Time("sendDate"),
	}, nil
}

func newAttachment(el Element) (Attachment, error) {
	if err := el.Require("fileID", "name"); err != nil {
		return Attachment{}, err
	}
	return Attachment{
		FileID:      el.Int("fileID"),
		Name:        el.Text("name"),
		Mime:        el.Text("mime"),
		Size:        el.Text("size"),
		Icon:        el.Text("icon"),
		WopiAllowed: el.Bool("wopiAllowed"),
		Order:       el.Int("order"),
	}, nil
}

// newMessageChanged reads whichever of status, label or new the portal sent.
func newMessageChanged(el Element) (MessageChanged, error) {
	if err := el.Require("id"); err != nil {
		return MessageChanged{}, err
	}
	changed := MessageChanged{ID: el.Int("id")}
	for _, key := range []string{"status", "label", "new"} {
		if _, ok := el[key]; ok {
			changed.New = el.Int(key)
			break
		}
	}
	return changed, nil
}

func newMessageDeletionStatus(el Element) (MessageDeletionStatus, error) {
	if err := el.Require("msgID"); err != nil {
		return MessageDeletionStatus{}, err
	}
	return MessageDeletionStatus{
		MsgID:     el.Int("msgID"),
		BoxType:   el.Text("boxType"),
		IsDeleted: el.Bool("status"),
	}, nil
}
