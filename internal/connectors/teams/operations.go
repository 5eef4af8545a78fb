package teams

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
	entityTeam    = "team"
	entityChannel = "channel"
	entityMessage = "message"

	teamFilter = "resourceProvisioningOptions/Any(x:x eq 'Team')"
)

type collection struct {
	Value []mapping.Object `json:"value"`
}

func (c *Connector) team(attrs instance.Attributes) (string, *resolver.Error) {
	if id := attrs.String("team_id"); id != "" {
		return id, nil
	}
	if c.teamID != "" {
		return c.teamID, nil
	}
	return "", resolver.Validationf("missing required field(s): team_id (or set %s)", envTeamID)
}

func channelsPath(team string) string {
	return "/teams/" + url.PathEscape(team) + "/channels"
}

func (c *Connector) QueryTeam(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "team_id"); id != "" {
		var out mapping.Object
		if err := c.client.Get(ctx, "/teams/"+url.PathEscape(id), nil, &out); err != nil {
			return resolver.Fail(err)
		}
		return resolver.One(instance.Make(Kind, entityTeam, mapTeam(out)))
	}
	var out collection
	query := url.Values{
		"$filter": {teamFilter},
		"$select": {"id,displayName,description,visibility,createdDateTime"},
		"$top":    {strconv.Itoa(pageSize)},
	}
	if err := c.client.Get(ctx, "/groups", query, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(mapping.Instances(Kind, entityTeam, out.Value, pageSize, mapTeam))
}

type channelInput struct {
	DisplayName    string `attr:"display_name" validate:"omitempty,max=50"`
	Description    string `attr:"description"`
	MembershipType string `attr:"membership_type" validate:"omitempty,oneof=standard private shared"`
}

func (in channelInput) payload() map[string]any {
	return mapping.Compact(map[string]any{
		"displayName":    in.DisplayName,
		"description":    in.Description,
		"membershipType": in.MembershipType,
	})
}

func (c *Connector) CreateChannel(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "display_name"); err != nil {
		return resolver.Fail(err)
	}
	team, verr := c.team(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in channelInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	if in.MembershipType == "" {
		in.MembershipType = "standard"
	}
	var out mapping.Object
	if err := c.client.JSON(ctx, http.MethodPost, channelsPath(team), nil, in.payload(), &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityChannel, mapChannel(team)(out)))
}

func (c *Connector) QueryChannel(ctx context.Context, attrs instance.Attributes) resolver.Result {
	team, verr := c.team(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	id := resolver.ID(attrs, "id", "channel_id")
	if id == "" {
		list, err := c.listChannels(ctx, team)
		if err != nil {
			return resolver.Fail(err)
		}
		return resolver.Many(list)
	}
	return c.getChannel(ctx, team, id)
}

func (c *Connector) getChannel(ctx context.Context, team, id string) resolver.Result {
	var out mapping.Object
	if err := c.client.Get(ctx, channelsPath(team)+"/"+url.PathEscape(id), nil, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityChannel, mapChannel(team)(out)))
}

// UpdateChannel patches and reads back; Graph answers PATCH with 204.
func (c *Connector) UpdateChannel(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "channel_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	team, verr := c.team(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in channelInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	body := in.payload()
	delete(body, "membershipType")
	if err := c.client.JSON(ctx, http.MethodPatch, channelsPath(team)+"/"+url.PathEscape(id), nil, body, nil); err != nil {
		return resolver.Fail(err)
	}
	return c.getChannel(ctx, team, id)
}

func (c *Connector) DeleteChannel(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "channel_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	team, verr := c.team(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: channelsPath(team) + "/" + url.PathEscape(id)}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityChannel, id)
}

func (c *Connector) listChannels(ctx context.Context, team string) ([]instance.Instance, error) {
	if team == "" {
		return nil, resolver.Configf("teams poller needs a team: set %s", envTeamID)
	}
	var out collection
	if err := c.client.Get(ctx, channelsPath(team), url.Values{"$top": {strconv.Itoa(pageSize)}}, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, entityChannel, out.Value, pageSize, mapChannel(team)), nil
}

type messageInput struct {
	ChannelID   string `attr:"channel_id"`
	Content     string `attr:"content"`
	ContentType string `attr:"content_type" validate:"omitempty,oneof=text html"`
	Subject     string `attr:"subject"`
	Importance  string `attr:"importance" validate:"omitempty,oneof=normal high urgent"`
}

func (c *Connector) CreateMessage(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "channel_id", "content"); err != nil {
		return resolver.Fail(err)
	}
	team, verr := c.team(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in messageInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "text"
	}
	body := mapping.Compact(map[string]any{
		"subject":    in.Subject,
		"importance": in.Importance,
	})
	body["body"] = map[string]any{"contentType": contentType, "content": in.Content}

	var out mapping.Object
	path := channelsPath(team) + "/" + url.PathEscape(in.ChannelID) + "/messages"
	if err := c.client.JSON(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityMessage, mapMessage(out)))
}

// QueryMessage lists the newest messages of channel_id, or returns one by id.
func (c *Connector) QueryMessage(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "channel_id"); err != nil {
		return resolver.Fail(err)
	}
	team, verr := c.team(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	path := channelsPath(team) + "/" + url.PathEscape(attrs.String("channel_id")) + "/messages"
	if id := resolver.ID(attrs, "id", "message_id"); id != "" {
		var out mapping.Object
		if err := c.client.Get(ctx, path+"/"+url.PathEscape(id), nil, &out); err != nil {
			return resolver.Fail(err)
		}
		return resolver.One(instance.Make(Kind, entityMessage, mapMessage(out)))
	}
	var out collection
	if err := c.client.Get(ctx, path, url.Values{"$top": {strconv.Itoa(messagePageSize)}}, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(mapping.Instances(Kind, entityMessage, out.Value, messagePageSize, mapMessage))
}
