package adapt

import (
	"context"
	"fmt"

	"github.com/EgorLis/adaptgo/pkg/cache"
)

// ChannelCache — кеш каналов с догрузкой GET /channels/{id}.
type ChannelCache struct {
	*cache.Cache[Snowflake, *Channel]
	client *Client
}

type GuildCache struct {
	*cache.Cache[Snowflake, *Guild]
	client *Client
}

type UserCache struct {
	*cache.Cache[Snowflake, *User]
	client *Client
}

func newCaches(c *Client, opts ...cache.Option) {
	c.Channels = &ChannelCache{
		Cache:  cache.New[Snowflake, *Channel](func(ch *Channel) Snowflake { return ch.ID }, opts...),
		client: c,
	}
	c.Channels.SetLoader(cache.LoaderFunc[Snowflake, *Channel](c.Channels.load))

	c.Guilds = &GuildCache{
		Cache:  cache.New[Snowflake, *Guild](func(g *Guild) Snowflake { return g.ID }, opts...),
		client: c,
	}
	c.Guilds.SetLoader(cache.LoaderFunc[Snowflake, *Guild](c.Guilds.load))

	c.Users = &UserCache{
		Cache:  cache.New[Snowflake, *User](func(u *User) Snowflake { return u.ID }, opts...),
		client: c,
	}
	c.Users.SetLoader(cache.LoaderFunc[Snowflake, *User](c.Users.load))
}

// Fetch — из кеша или из API. Канала нет — (nil, nil).
// Заодно подтягивает его гильдию.
func (cc *ChannelCache) Fetch(ctx context.Context, id Snowflake) (*Channel, error) {
	ch, _, err := cc.Cache.Fetch(ctx, id)
	return ch, err
}

func (cc *ChannelCache) load(ctx context.Context, id Snowflake) (*Channel, error) {
	var ch Channel
	found, err := cc.client.rest.Get(ctx, "/channels/"+id.String(), &ch)
	if err != nil {
		return nil, fmt.Errorf("fetch channel %s: %w", id, err)
	}
	if !found {
		return nil, cache.ErrNotFound
	}
	ch.client = cc.client
	if ch.GuildID != "" {
		g, err := cc.client.Guilds.Fetch(ctx, ch.GuildID)
		if err != nil {
			return nil, err
		}
		ch.Guild = g
	}
	return &ch, nil
}

// Create — POST /channels; созданный канал кладётся в кеш.
func (cc *ChannelCache) Create(ctx context.Context, opts ChannelCreateOptions) (*Channel, error) {
	return cc.Cache.Create(ctx, func(ctx context.Context) (*Channel, error) {
		var ch Channel
		if err := cc.client.rest.Post(ctx, "/channels", opts, &ch); err != nil {
			return nil, fmt.Errorf("create channel: %w", err)
		}
		ch.client = cc.client
		if g, ok := cc.client.Guilds.Get(ch.GuildID); ok {
			ch.Guild = g
		}
		return &ch, nil
	})
}

func (gc *GuildCache) Fetch(ctx context.Context, id Snowflake) (*Guild, error) {
	g, _, err := gc.Cache.Fetch(ctx, id)
	return g, err
}

func (gc *GuildCache) load(ctx context.Context, id Snowflake) (*Guild, error) {
	var g Guild
	found, err := gc.client.rest.Get(ctx, "/guilds/"+id.String(), &g)
	if err != nil {
		return nil, fmt.Errorf("fetch guild %s: %w", id, err)
	}
	if !found {
		return nil, cache.ErrNotFound
	}
	g.attach(gc.client)
	return &g, nil
}

// Create — POST /guilds {name}.
func (gc *GuildCache) Create(ctx context.Context, name string) (*Guild, error) {
	return gc.Cache.Create(ctx, func(ctx context.Context) (*Guild, error) {
		var g Guild
		if err := gc.client.rest.Post(ctx, "/guilds", map[string]string{"name": name}, &g); err != nil {
			return nil, fmt.Errorf("create guild: %w", err)
		}
		g.attach(gc.client)
		return &g, nil
	})
}

func (uc *UserCache) Fetch(ctx context.Context, id Snowflake) (*User, error) {
	u, _, err := uc.Cache.Fetch(ctx, id)
	return u, err
}

func (uc *UserCache) load(ctx context.Context, id Snowflake) (*User, error) {
	var u User
	found, err := uc.client.rest.Get(ctx, "/user/"+id.String(), &u)
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	if !found {
		return nil, cache.ErrNotFound
	}
	u.client = uc.client
	return &u, nil
}
