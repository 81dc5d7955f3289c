package sqlinline

const QInsertUsageCounterIfMissing = `--sql d2ee8225-f20e-468d-afaa-f8cb18773bf0
insert into usage_counters(user_id, characters_used, last_reset_date, plan, updated_at)
values ($1::text, 0, $2::date, $3::text, now())
on conflict (user_id) do nothing;
`

const QSelectUsageCounter = `--sql 2b485407-8725-40cf-8477-189193a74bf8
select user_id, characters_used, last_reset_date, plan, updated_at, total_characters, total_generations
from usage_counters
where user_id = $1::text;
`

const QResetUsageIfNewPeriod = `--sql 72e46421-5af8-4e77-824e-77a7679df901
update usage_counters
set characters_used = 0, last_reset_date = $2::date, updated_at = now()
where user_id = $1::text
  and date_trunc('month', last_reset_date) < date_trunc('month', $2::date);
`

const QAddUsage = `--sql 70493902-d4b9-4182-9d21-ccbc3e33b5da
update usage_counters
set characters_used = characters_used + $2::bigint,
    total_characters = total_characters + $2::bigint,
    total_generations = total_generations + 1,
    updated_at = now()
where user_id = $1::text
returning characters_used;
`

// QConsumeUsage locks the row, then resets and increments in one update so
// concurrent synthesis calls never count into a stale period.
const QConsumeUsage = `--sql a42483bf-bb7f-4502-81e3-412131e52266
with prev as (
  select user_id, date_trunc('month', last_reset_date) < date_trunc('month', $3::date) as reset
  from usage_counters
  where user_id = $1::text
  for update
)
update usage_counters u
set characters_used = case when prev.reset then $2::bigint else u.characters_used + $2::bigint end,
    last_reset_date = case when prev.reset then $3::date else u.last_reset_date end,
    total_characters = u.total_characters + $2::bigint,
    total_generations = u.total_generations + 1,
    updated_at = now()
from prev
where u.user_id = prev.user_id
returning u.user_id, u.characters_used, u.last_reset_date, u.plan, u.updated_at,
  u.total_characters, u.total_generations, prev.reset;
`

const QUpsertUsagePlan = `--sql 9ed3203e-89d7-4077-8448-27dbc3848248
insert into usage_counters(user_id, characters_used, last_reset_date, plan, updated_at)
values ($1::text, 0, $3::date, $2::text, now())
on conflict (user_id) do update
set plan = excluded.plan, updated_at = now();
`

const QResetUsageNow = `--sql b28600ed-a844-4a37-9cac-d3a4be10b718
update usage_counters
set characters_used = 0, last_reset_date = $2::date, updated_at = now()
where user_id = $1::text;
`
