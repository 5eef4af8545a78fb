package zoom

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

const (
	entityMeeting = "meeting"
	entityUser    = "user"

	scheduledMeeting = 2
	basicUser        = 1
)

type meetingInput struct {
	Topic     string `attr:"topic"`
	Type      int    `attr:"type" validate:"omitempty,oneof=1 2 3 8"`
	StartTime string `attr:"start_time"`
	Duration  int    `attr:"duration" validate:"omitempty,min=1"`
	Timezone  string `attr:"timezone"`
	Agenda    string `attr:"agenda"`
	Password  string `attr:"password" validate:"omitempty,max=10"`
	UserID    string `attr:"user_id"`
}

func (in meetingInput) payload() map[string]any {
	body := mapping.Compact(map[string]any{
		"topic":      in.Topic,
		"start_time": in.StartTime,
		"timezone":   in.Timezone,
		"agenda":     in.Agenda,
		"password":   in.Password,
	})
	if in.Type > 0 {
		body["type"] = in.Type
	}
	if in.Duration > 0 {
		body["duration"] = in.Duration
	}
	return body
}

func (c *Connector) CreateMeeting(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "topic"); err != nil {
		return resolver.Fail(err)
	}
	var in meetingInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	if in.Type == 0 {
		in.Type = scheduledMeeting
	}
	user := in.UserID
	if user == "" {
		user = c.userID
	}
	var out mapping.Object
	if err := c.client.JSON(ctx, http.MethodPost, "/users/"+url.PathEscape(user)+"/meetings", nil, in.payload(), &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityMeeting, mapMeeting(out)))
}

func (c *Connector) QueryMeeting(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id := resolver.ID(attrs, "id", "meeting_id")
	if id == "" {
		user := attrs.String("user_id")
		if user == "" {
			user = c.userID
		}
		list, err := c.listMeetings(ctx, user)
		if err != nil {
			return resolver.Fail(err)
		}
		return resolver.Many(list)
	}
	return c.getMeeting(ctx, id)
}

func (c *Connector) getMeeting(ctx context.Context, id string) resolver.Result {
	var out mapping.Object
	if err := c.client.Get(ctx, "/meetings/"+url.PathEscape(id), nil, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityMeeting, mapMeeting(out)))
}

// UpdateMeeting patches the meeting and reads it back; Zoom answers PATCH with 204.
func (c *Connector) UpdateMeeting(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "meeting_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in meetingInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	if err := c.client.JSON(ctx, http.MethodPatch, "/meetings/"+url.PathEscape(id), nil, in.payload(), nil); err != nil {
		return resolver.Fail(err)
	}
	return c.getMeeting(ctx, id)
}

func (c *Connector) DeleteMeeting(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "meeting_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/meetings/" + url.PathEscape(id)}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityMeeting, id)
}

func (c *Connector) listMeetings(ctx context.Context, user string) ([]instance.Instance, error) {
	var out struct {
		Meetings []mapping.Object `json:"meetings"`
	}
	query := url.Values{"page_size": {strconv.Itoa(pageSize)}}
	if err := c.client.Get(ctx, "/users/"+url.PathEscape(user)+"/meetings", query, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, entityMeeting, out.Meetings, pageSize, mapMeeting), nil
}

type userInput struct {
	Email     string `attr:"email" validate:"omitempty,email"`
	FirstName string `attr:"first_name"`
	LastName  string `attr:"last_name"`
	Type      int    `attr:"type" validate:"omitempty,oneof=1 2 3 99"`
	Dept      string `attr:"dept"`
	Timezone  string `attr:"timezone"`
	JobTitle  string `attr:"job_title"`
	Action    string `attr:"action" validate:"omitempty,oneof=create autoCreate custCreate ssoCreate delete disassociate"`
}

func (in userInput) info() map[string]any {
	body := mapping.Compact(map[string]any{
		"email":      in.Email,
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"dept":       in.Dept,
		"timezone":   in.Timezone,
		"job_title":  in.JobTitle,
	})
	if in.Type > 0 {
		body["type"] = in.Type
	}
	return body
}

func (c *Connector) CreateUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "email"); err != nil {
		return resolver.Fail(err)
	}
	var in userInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	if in.Type == 0 {
		in.Type = basicUser
	}
	action := in.Action
	if action == "" || action == "delete" || action == "disassociate" {
		action = "create"
	}
	var out mapping.Object
	body := map[string]any{"action": action, "user_info": in.info()}
	if err := c.client.JSON(ctx, http.MethodPost, "/users", nil, body, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityUser, mapUser(out)))
}

func (c *Connector) QueryUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id := resolver.ID(attrs, "id", "user_id")
	if id == "" {
		var out struct {
			Users []mapping.Object `json:"users"`
		}
		if err := c.client.Get(ctx, "/users", url.Values{"page_size": {strconv.Itoa(pageSize)}}, &out); err != nil {
			return resolver.Fail(err)
		}
		return resolver.Many(mapping.Instances(Kind, entityUser, out.Users, pageSize, mapUser))
	}
	return c.getUser(ctx, id)
}

func (c *Connector) getUser(ctx context.Context, id string) resolver.Result {
	var out mapping.Object
	if err := c.client.Get(ctx, "/users/"+url.PathEscape(id), nil, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityUser, mapUser(out)))
}

func (c *Connector) UpdateUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "user_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in userInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	info := in.info()
	delete(info, "email")
	if err := c.client.JSON(ctx, http.MethodPatch, "/users/"+url.PathEscape(id), nil, info, nil); err != nil {
		return resolver.Fail(err)
	}
	return c.getUser(ctx, id)
}

// DeleteUser disassociates the user from the account unless action=delete.
func (c *Connector) DeleteUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "user_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	action := "disassociate"
	if attrs.String("action") == "delete" {
		action = "delete"
	}
	req := httpclient.Request{Method: http.MethodDelete, Path: "/users/" + url.PathEscape(id), Query: url.Values{"action": {action}}}
	if _, err := c.client.Do(ctx, req); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityUser, id)
}
